package web

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"LiveChart/internal/collector"
	"LiveChart/internal/metrics"
	"LiveChart/internal/model"
	"LiveChart/internal/scheduler"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types pushed to and accepted from dashboard clients.
const (
	TypeChart  = "chart"
	TypeStatus = "status"
	TypeSymbol = "symbol"
	TypeError  = "error"
)

// Envelope wraps every server push.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	TS   time.Time   `json:"ts"`
}

// StatusMessage is the error indicator state. OK is false while the last
// tick for Symbol failed; the previous chart stays on screen.
type StatusMessage struct {
	Symbol string    `json:"symbol"`
	OK     bool      `json:"ok"`
	Kind   string    `json:"kind,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// SymbolSetter receives symbol changes typed by users.
type SymbolSetter interface {
	SetSymbol(symbol string) error
}

// Hub fans applied charts and status changes out to websocket clients and
// keeps the latest of each for late joiners and the REST API.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	chart    *model.ChartSpec
	chartMsg []byte
	status   StatusMessage
	setter   SymbolSetter

	metrics *metrics.Metrics
	logger  *zap.Logger
}

var _ scheduler.Display = (*Hub)(nil)

// NewHub creates an empty Hub. m may be nil.
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		metrics: m,
		logger:  logger,
	}
}

// SetSymbolSetter wires user symbol input to the refresh controller.
func (h *Hub) SetSymbolSetter(s SymbolSetter) {
	h.mu.Lock()
	h.setter = s
	h.mu.Unlock()
}

// Show replaces the displayed chart and clears the error indicator.
func (h *Hub) Show(spec *model.ChartSpec, title string) {
	if spec == nil {
		return
	}
	now := time.Now()
	chartMsg, err := json.Marshal(Envelope{Type: TypeChart, Data: spec, TS: now})
	if err != nil {
		h.logger.Error("encode chart", zap.String("title", title), zap.Error(err))
		return
	}
	status := StatusMessage{Symbol: spec.Symbol, OK: true, At: now}
	statusMsg, _ := json.Marshal(Envelope{Type: TypeStatus, Data: status, TS: now})

	h.mu.Lock()
	h.chart = spec
	h.chartMsg = chartMsg
	h.status = status
	h.mu.Unlock()

	h.broadcast(chartMsg)
	h.broadcast(statusMsg)
}

// ShowError raises the error indicator; the last chart is left untouched.
func (h *Hub) ShowError(symbol string, err error) {
	now := time.Now()
	status := StatusMessage{Symbol: symbol, OK: false, Kind: errorKind(err), At: now}
	if err != nil {
		status.Error = err.Error()
	}
	msg, _ := json.Marshal(Envelope{Type: TypeStatus, Data: status, TS: now})

	h.mu.Lock()
	h.status = status
	h.mu.Unlock()

	h.broadcast(msg)
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case collector.IsDataUnavailable(err):
		return "data_unavailable"
	case errors.Is(err, scheduler.ErrComputation):
		return "computation_error"
	default:
		return "provider_error"
	}
}

// Chart returns the latest displayed chart, or nil before the first success.
func (h *Hub) Chart() *model.ChartSpec {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.chart
}

// Status returns the current indicator state.
func (h *Hub) Status() StatusMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast queues msg on every client; slow clients drop it.
func (h *Hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client send buffer full, dropping message", zap.String("client", c.id))
		}
	}
}

// Register attaches an upgraded connection and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	client.queueInitialStateLocked()
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	h.logger.Info("ws client connected", zap.String("client", client.id), zap.Int("total", count))

	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient detaches a client and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	h.logger.Info("ws client disconnected", zap.String("client", c.id), zap.Int("total", count))
}

func (h *Hub) setSymbol(symbol string) error {
	h.mu.RLock()
	s := h.setter
	h.mu.RUnlock()
	if s == nil {
		return errors.New("symbol changes are not accepted")
	}
	return s.SetSymbol(symbol)
}
