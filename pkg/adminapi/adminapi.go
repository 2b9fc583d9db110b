// Package adminapi is the node's read-only operational HTTP surface:
// a health check, a Prometheus scrape endpoint, and a live dump of the
// routing table and outstanding onionboxen count. None of this sits on
// the onion wire protocol - it is the Go home of the original's
// startup table-dump print, made pollable instead of printed once.
package adminapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmailnet/relaynode/pkg/dht"
	"github.com/pmailnet/relaynode/pkg/metrics"
)

// Server serves the admin HTTP surface.
type Server struct {
	httpServer *http.Server
	table      *dht.Table
}

// TLSConfig groups file-based mutual-TLS settings for the admin API.
// New does not read it: TLS is configured by the *tls.Config passed to
// New.
type TLSConfig struct {
	CACert     string
	CertFile   string
	KeyFile    string
	ClientAuth tls.ClientAuthType
}

// New builds an admin HTTP server bound to addr, reporting on table
// and scraped through m's registry. A non-nil tlsCfg serves HTTPS with
// exactly that configuration (client certificates are required only if
// tlsCfg.ClientAuth asks for them); a nil tlsCfg serves plain HTTP,
// which is fine when addr is loopback-only.
func New(addr string, table *dht.Table, m *metrics.Metrics, tlsCfg *tls.Config) *Server {
	r := mux.NewRouter()
	s := &Server{table: table}

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/debug/dht", s.handleDebugDHT).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		TLSConfig:    tlsCfg,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves the admin API in a goroutine, logging a fatal error
// only through the returned channel rather than calling log.Fatal
// itself - callers decide how to react to a bind failure.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		var err error
		if s.httpServer.TLSConfig != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			log.Printf("adminapi: serving %s without TLS (bind to loopback only)", s.httpServer.Addr)
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "healthy",
		"dht_size":    s.table.Size(),
		"outstanding": s.table.OutstandingCount(),
	})
}

// debugDHTEntry is one row of the /debug/dht dump.
type debugDHTEntry struct {
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
	Codename  string `json:"codename"`
}

func (s *Server) handleDebugDHT(w http.ResponseWriter, r *http.Request) {
	snapshot := s.table.Snapshot()
	entries := make([]debugDHTEntry, 0, len(snapshot))
	for pub, addr := range snapshot {
		entries = append(entries, debugDHTEntry{
			PublicKey: pub.String(),
			Address:   addr.String(),
			Codename:  dht.Codename(pub),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"size":              len(entries),
		"outstanding_count": s.table.OutstandingCount(),
		"peers":             entries,
	})
}
