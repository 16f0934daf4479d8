package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stratbox/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame wraps every relayed bus message with its topic so clients can
// demultiplex a single connection.
type wsFrame struct {
	Event   events.Event `json:"event"`
	Payload any          `json:"payload"`
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := []events.Event{
		events.EventPriceTick,
		events.EventEvaluation,
		events.EventSignal,
		events.EventTradeExecuted,
		events.EventStrategyLog,
	}

	out := make(chan wsFrame, 200)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range topics {
		stream, unsub := s.Bus.Subscribe(topic, 100)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for msg := range stream {
				select {
				case out <- wsFrame{Event: topic, Payload: msg}:
				case <-done:
					return
				}
			}
		}(topic, stream)
	}

	// Reader drains client frames so pings and close frames are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame := <-out:
			if err := conn.WriteJSON(frame); err != nil {
				s.Log.Debug().Err(err).Msg("ws write failed")
				return
			}
		case <-closed:
			return
		}
	}
}
