// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package portalweb implements the captive portal web application. It runs
// as its own supervised process and answers every probe a joining device
// sends with portal content, which is what flips the device's "sign in to
// network" prompt.
package portalweb

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/flytrap/internal/config"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/metrics"
)

const leaseRefreshInterval = 15 * time.Second

// Server is the portal HTTP server.
type Server struct {
	cfg       *config.Hotspot
	logger    *logging.Logger
	collector *metrics.Collector
	leasePath string

	httpServer *http.Server
}

// NewServer builds the portal server. leasePath points at the dnsmasq lease
// file used for the connected-clients gauge; empty disables lease polling.
func NewServer(cfg *config.Hotspot, leasePath string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.WithComponent("portalweb")
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		collector: metrics.NewCollector(),
		leasePath: leasePath,
	}
}

// Router builds the portal route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handlePortal).Methods("GET")
	r.HandleFunc("/submit", s.handleSubmit).Methods("POST")
	r.HandleFunc("/success", s.handleSuccess).Methods("GET")
	r.HandleFunc("/welcome", s.handlePortal).Methods("GET")

	// Platform connectivity probes. Each expects a particular "all clear"
	// body; answering with portal content instead is what triggers the
	// device's captive portal prompt.
	for _, probe := range []string{
		"/generate_204",             // Android
		"/hotspot-detect.html",      // iOS / macOS
		"/library/test/success.html",
		"/hotspot.html",
		"/connectivity-check.html", // NetworkManager distros
		"/canonical.html",          // Ubuntu
		"/kindle-wifi/wifistub.html",
		"/redirect",
		"/windows/redirect",
		"/mobile/redirect",
	} {
		r.HandleFunc(probe, s.handlePortal)
	}
	r.HandleFunc("/ncsi.txt", s.handleText("Microsoft NCSI"))
	r.HandleFunc("/success.txt", s.handleText("Success"))

	r.HandleFunc("/api/v1/connectivity", s.handleConnectivity).Methods("GET")
	r.HandleFunc("/api/v1/status", s.handleStatus).Methods("GET")
	r.Handle("/metrics", s.collector.Handler()).Methods("GET")

	// Anything else a device or app asks for gets the portal page too.
	r.PathPrefix("/").HandlerFunc(s.handlePortal)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.PortalAddr(),
		Handler:           s.accessLog(s.Router()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	if s.leasePath != "" {
		go s.pollLeases(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Portal web server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) pollLeases(ctx context.Context) {
	ticker := time.NewTicker(leaseRefreshInterval)
	defer ticker.Stop()
	for {
		leases, err := metrics.ReadLeases(s.leasePath, time.Now())
		if err != nil {
			s.logger.Warn("Failed to read lease file", "path", s.leasePath, "error", err)
		} else {
			s.collector.SetConnectedClients(len(leases))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, portalPage{
		SSID:    s.cfg.SSID,
		Title:   "Welcome to " + s.cfg.SSID,
		Success: false,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	s.logger.Info("Portal submission",
		"name", r.PostFormValue("name"),
		"email", r.PostFormValue("email"),
		"client", r.RemoteAddr)
	http.Redirect(w, r, "/success", http.StatusSeeOther)
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, portalPage{
		SSID:    s.cfg.SSID,
		Title:   "Connected",
		Success: true,
	})
}

func (s *Server) handleText(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":       "captive_portal",
		"redirect_url": "/",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"connected":       false,
		"portal_required": true,
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.logger.Debug("Request", "method", r.Method, "path", r.URL.Path, "client", r.RemoteAddr)
	})
}
