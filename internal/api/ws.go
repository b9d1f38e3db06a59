package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsIdlePingInterval = 30 * time.Second
	wsWriteWait        = 5 * time.Second
)

func (s *Server) serveProgressWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := s.hub.subscribe()
	if data, ok := encodeMessage("status", s.status()); ok {
		client.deliver(data)
	}

	go func() {
		defer conn.Close()
		if err := client.writeLoop(conn); err != nil {
			s.logger.Debug().Err(err).Msg("progress socket closed")
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.unsubscribe(client)
			return
		}
	}
}

// writeLoop drains the client's queue onto conn. A ping control frame goes
// out after wsIdlePingInterval without traffic, and a going-away close frame
// when the hub shuts down.
func (c *Client) writeLoop(conn *websocket.Conn) error {
	idle := time.NewTimer(wsIdlePingInterval)
	defer idle.Stop()
	for {
		select {
		case <-c.hub.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
		case data, ok := <-c.send:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-idle.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return err
			}
		}
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(wsIdlePingInterval)
	}
}
