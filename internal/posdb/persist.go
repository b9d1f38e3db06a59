package posdb

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/zobrist"
)

var ErrCorrupt = errors.New("corrupt position database")

const formatVersion byte = 1

var magic = []byte("C4DB")

type record struct {
	Key   uint64
	Move  int8
	Depth int
	Score int32
}

type snapshot struct {
	Entries []record
}

// Load reads the database at path. A missing file yields an empty database
// and no error. An unreadable file yields an empty database and an error
// wrapping ErrCorrupt.
func Load(path string) (DB, error) {
	logger := log.With().Str("component", "posdb").Str("path", path).Logger()
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info().Msg("no database file, starting empty")
			return New(), nil
		}
		return New(), errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	db, err := decode(file)
	if err != nil {
		return New(), errors.Wrapf(ErrCorrupt, "%s: %v", path, err)
	}
	logger.Info().Int("positions", len(db)).Msg("loaded database")
	return db, nil
}

func decode(r io.Reader) (DB, error) {
	br := bufio.NewReader(r)
	header := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, errors.New("bad magic")
	}
	if header[len(magic)] != formatVersion {
		return nil, errors.Errorf("unsupported version %d", header[len(magic)])
	}
	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, errors.Wrap(err, "zstd reader")
	}
	defer zr.Close()
	var snap snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	db := make(DB, len(snap.Entries))
	for _, rec := range snap.Entries {
		db[zobrist.Key(rec.Key)] = Entry{Move: rec.Move, Depth: rec.Depth, Score: rec.Score}
	}
	return db, nil
}

// Save writes db atomically: the data goes to a temporary file in the same
// directory which then replaces path.
func Save(path string, db DB) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %s", dir)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encode(tmp, db); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename to %s", path)
	}
	log.Info().Str("component", "posdb").Str("path", path).Int("positions", len(db)).Msg("saved database")
	return nil
}

func encode(w io.Writer, db DB) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic); err != nil {
		return err
	}
	if err := bw.WriteByte(formatVersion); err != nil {
		return err
	}
	zw, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return errors.Wrap(err, "zstd writer")
	}
	snap := snapshot{Entries: make([]record, 0, len(db))}
	for _, key := range db.SortedKeys() {
		e := db[key]
		snap.Entries = append(snap.Entries, record{Key: uint64(key), Move: e.Move, Depth: e.Depth, Score: e.Score})
	}
	if err := gob.NewEncoder(zw).Encode(&snap); err != nil {
		zw.Close()
		return errors.Wrap(err, "encode")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "zstd close")
	}
	return bw.Flush()
}
