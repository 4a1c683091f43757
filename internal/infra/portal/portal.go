// Package portal hosts the captive-portal HTTP server used to accept WiFi
// credentials while the provisioning access point is active, plus the
// optional debug endpoints (status, metrics).
package portal

import (
	"context"
	"encoding/json"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
)

// Server hosts the captive form at "/" and accepts submitted credentials
// via StatusFunc/StatusReport for the status/metrics debug endpoints.
type Server struct {
	addr          string
	radio         domain.WifiRadio
	log           *logrus.Entry
	statusFunc    func() any
	enableMetrics bool
	onSaved       func()

	srv *http.Server
}

// New creates a portal HTTP server bound to addr (typically the AP's
// gateway address, e.g. "192.168.4.1:80"). onSaved, if non-nil, is called
// after credentials are successfully saved so the caller's WiFi state
// machine can exit the portal without waiting for a button press.
func New(addr string, radio domain.WifiRadio, statusFunc func() any, enableMetrics bool, onSaved func(), log *logrus.Logger) *Server {
	return &Server{
		addr:          addr,
		radio:         radio,
		log:           log.WithField("task", "portal"),
		statusFunc:    statusFunc,
		enableMetrics: enableMetrics,
		onSaved:       onSaved,
	}
}

// Start launches the HTTP server in the background. It returns once the
// listener is established; errors encountered while serving are logged,
// not returned, so the caller's provisioning loop never blocks on it.
func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", s.handleForm)
	r.Post("/save", s.handleSave)
	if s.statusFunc != nil {
		r.Get("/status", s.handleStatus)
	}
	if s.enableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	s.srv = &http.Server{Addr: s.addr, Handler: r}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("portal server stopped unexpectedly")
		}
	}()
	return nil
}

// Stop shuts the server down. Safe to call even if Start failed.
func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

var formTemplate = template.Must(template.New("form").Parse(`<!doctype html>
<html><body>
<h3>Greenhouse WiFi setup</h3>
<form method="POST" action="/save">
  <label>SSID <input name="ssid" required></label><br>
  <label>Password <input name="password" type="password"></label><br>
  <button type="submit">Save</button>
</form>
</body></html>`))

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	_ = formTemplate.Execute(w, nil)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	ssid := r.FormValue("ssid")
	password := r.FormValue("password")
	if ssid == "" {
		http.Error(w, "ssid required", http.StatusBadRequest)
		return
	}
	if err := s.radio.SaveCredentials(ssid, password); err != nil {
		s.log.WithError(err).Error("failed to save wifi credentials")
		http.Error(w, "failed to save credentials", http.StatusInternalServerError)
		return
	}
	w.Write([]byte("Saved. The device will reconnect shortly."))
	if s.onSaved != nil {
		s.onSaved()
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.statusFunc())
}
