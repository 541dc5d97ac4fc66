package web

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 1024
)

// Client is a single dashboard websocket peer.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// inbound is what clients may send.
type inbound struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// queueInitialStateLocked replays the latest chart and status so a new tab
// renders at once. The hub lock must be held so no broadcast can interleave.
func (c *Client) queueInitialStateLocked() {
	if c.hub.chartMsg != nil {
		c.send <- c.hub.chartMsg
	}
	if !c.hub.status.At.IsZero() {
		msg, _ := json.Marshal(Envelope{Type: TypeStatus, Data: c.hub.status, TS: time.Now()})
		c.send <- msg
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg inbound
		if json.Unmarshal(raw, &msg) != nil {
			c.reply(TypeError, map[string]string{"error": "invalid JSON"})
			continue
		}
		switch msg.Type {
		case TypeSymbol:
			if err := c.hub.setSymbol(msg.Symbol); err != nil {
				c.reply(TypeError, map[string]string{"error": err.Error()})
				continue
			}
			c.hub.logger.Debug("symbol requested", zap.String("client", c.id), zap.String("symbol", msg.Symbol))
		default:
			c.reply(TypeError, map[string]string{"error": "unknown message type " + msg.Type})
		}
	}
}

func (c *Client) reply(typ string, data interface{}) {
	msg, _ := json.Marshal(Envelope{Type: typ, Data: data, TS: time.Now()})
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
