package web

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"LiveChart/internal/metrics"
	"LiveChart/internal/render"
	"LiveChart/internal/scheduler"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//go:embed static
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the part of the refresh controller the HTTP surface needs.
type Controller interface {
	SetSymbol(symbol string) error
	Status() scheduler.Status
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// RegisterRoutes registers all HTTP routes on the provided mux. m may be nil.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, ctrl Controller, m *metrics.Metrics, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("/", http.FileServer(http.FS(static)))

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws upgrade", zap.Error(err))
			return
		}
		hub.Register(conn)
	})

	// REST: latest chart
	mux.HandleFunc("/api/chart", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		spec := hub.Chart()
		if spec == nil {
			writeError(w, http.StatusNotFound, "no chart yet")
			return
		}
		writeJSON(w, http.StatusOK, spec)
	})

	// REST: static snapshot of the latest chart
	mux.HandleFunc("/api/chart.png", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		spec := hub.Chart()
		if spec == nil {
			writeError(w, http.StatusNotFound, "no chart yet")
			return
		}
		width := queryInt(r, "w", 1200)
		height := queryInt(r, "h", 800)
		if width > 4000 || height > 4000 {
			writeError(w, http.StatusBadRequest, "image too large")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := render.PNG(w, spec, width, height); err != nil {
			logger.Warn("render png", zap.Error(err))
			writeError(w, http.StatusBadRequest, err.Error())
		}
	})

	// REST: controller and display status
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"controller": ctrl.Status(),
			"display":    hub.Status(),
			"clients":    hub.ClientCount(),
		})
	})

	// REST: POST /api/symbol {"symbol":"AAPL"}
	mux.HandleFunc("/api/symbol", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
			return
		case http.MethodPost:
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Symbol string `json:"symbol"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if err := ctrl.SetSymbol(req.Symbol); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, scheduler.ErrEmptySymbol) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "symbol": ctrl.Status().Symbol})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
