// Package server exposes the signaling hub over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cagdaskarabulut/yali-speak/internal/config"
	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
	"github.com/cagdaskarabulut/yali-speak/internal/signaling"
)

// NewUpgrader configures the websocket upgrader for cfg's origin policy.
func NewUpgrader(cfg *config.ServerConfig) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		Subprotocols:    protocol.Subprotocols,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
func ServeWs(hub *signaling.Hub, cfg *config.ServerConfig) http.HandlerFunc {
	upgrader := NewUpgrader(cfg)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "err", err)
			return
		}

		client := signaling.NewClient(hub, conn, cfg.SendBuffer)
		slog.Debug("websocket accepted", "remote", r.RemoteAddr, "peer", client.ID(), "subprotocol", conn.Subprotocol())
		client.Run()
	}
}

// Health Check endpoint
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// roomsHandler lists active rooms and their sizes.
func roomsHandler(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.Registry.Rooms()); err != nil {
			slog.Warn("failed to write room list", "err", err)
		}
	}
}

// NewMux registers every route. gatherer may be nil when metrics are off.
func NewMux(hub *signaling.Hub, cfg *config.ServerConfig, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc("/rooms", roomsHandler(hub))
	mux.HandleFunc("/ws", ServeWs(hub, cfg))
	if cfg.Metrics && gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}
