// Package http exposes a running grid over HTTP: machine inspection, route
// resolution, port action broadcast, event injection and a notification
// stream.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/hsmgrid"
	"github.com/aretw0/hsmgrid/internal/host"
	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/aretw0/hsmgrid/pkg/registry"
	"github.com/go-chi/chi/v5"
)

// Server serves a host's registry.
type Server struct {
	host     *host.Host
	metrics  http.Handler
	streams  *StreamManager
	logger   *slog.Logger
	unlisten ports.CancelFunc
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h at GET /metrics, typically promhttp.HandlerFor.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server over h and starts relaying machine
// notifications to stream subscribers.
func NewServer(h *host.Host, opts ...Option) *Server {
	s := &Server{
		host:    h,
		streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	_ = h.Do(func(r *registry.Registry) error {
		unhook := r.Listen(s.streams.Hooks())
		unsubscribe := r.Lifecycle().Subscribe(s.streams)
		s.unlisten = func() {
			unhook()
			unsubscribe()
		}
		return nil
	})
	return s
}

// Close stops relaying notifications.
func (s *Server) Close() {
	_ = s.host.Do(func(*registry.Registry) error {
		if s.unlisten != nil {
			s.unlisten()
			s.unlisten = nil
		}
		return nil
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return enableCORS(s.router())
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", s.getSpec)
	r.Get("/machines", s.listMachines)
	r.Get("/machines/{name}", s.getMachine)
	r.Post("/machines/{name}/events", s.postEvent)
	r.Get("/routes/{machine}/{port}", s.getRoute)
	r.Post("/actions", s.postAction)
	r.Get("/events", s.subscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MachineView is the JSON shape of a registered machine.
type MachineView struct {
	Name          string            `json:"name"`
	State         string            `json:"state,omitempty"`
	Configuration []string          `json:"configuration,omitempty"`
	Ports         []string          `json:"ports"`
	Links         []domain.PortLink `json:"links,omitempty"`
}

// RouteView lists the source ports feeding a destination port.
type RouteView struct {
	Machine string   `json:"machine"`
	Port    string   `json:"port"`
	Sources []string `json:"sources"`
}

// ActionRequest is the body of POST /actions.
type ActionRequest struct {
	Source  string `json:"source"`
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
}

// stateful is implemented by engines that expose their active configuration.
type stateful interface {
	State() string
	Configuration() []string
}

var errNotFound = errors.New("not found")

func viewOf(r *registry.Registry, m ports.Machine) MachineView {
	v := MachineView{Name: m.Name(), Ports: []string{}, Links: r.Links(m.Name())}
	for _, p := range m.Ports() {
		v.Ports = append(v.Ports, p.QualifiedName())
	}
	if sm, ok := m.(stateful); ok {
		v.State = sm.State()
		v.Configuration = sm.Configuration()
	}
	return v
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	var machines int
	_ = s.host.Do(func(reg *registry.Registry) error {
		machines = reg.Len()
		return nil
	})
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":         "hsmgrid-http",
		"version":     hsmgrid.Version,
		"api_version": apiVersion,
		"machines":    machines,
	})
}

func (s *Server) listMachines(w http.ResponseWriter, r *http.Request) {
	views := []MachineView{}
	_ = s.host.Do(func(reg *registry.Registry) error {
		for _, m := range reg.Instances() {
			views = append(views, viewOf(reg, m))
		}
		return nil
	})
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) getMachine(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var view MachineView
	err := s.host.Do(func(reg *registry.Registry) error {
		m, ok := reg.Lookup(name)
		if !ok {
			return errNotFound
		}
		view = viewOf(reg, m)
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("machine %q: %w", name, err))
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) getRoute(w http.ResponseWriter, r *http.Request) {
	view := RouteView{
		Machine: chi.URLParam(r, "machine"),
		Port:    chi.URLParam(r, "port"),
		Sources: []string{},
	}
	_ = s.host.Do(func(reg *registry.Registry) error {
		for _, p := range reg.ResolveSourcePorts(view.Machine, view.Port) {
			view.Sources = append(view.Sources, p.QualifiedName())
		}
		return nil
	})
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) postAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Source == "" || req.Action == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("source and action are required"))
		return
	}

	var offered int
	_ = s.host.Do(func(reg *registry.Registry) error {
		offered = reg.Len()
		reg.BroadcastPortAction(req.Source, req.Action, req.Payload)
		return nil
	})
	s.logger.Debug("port action broadcast", "source", req.Source, "action", req.Action, "offered", offered)
	s.writeJSON(w, http.StatusAccepted, map[string]int{"offered": offered})
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if ev.Name == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("event name is required"))
		return
	}

	err := s.host.Do(func(reg *registry.Registry) error {
		m, ok := reg.Lookup(name)
		if !ok {
			return errNotFound
		}
		reg.Driver().Post(m, ev)
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("machine %q: %w", name, err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// subscribeEvents streams machine and lifecycle notifications as server-sent
// events. The optional machine query parameter narrows the stream to one
// machine.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(r.URL.Query().Get("machine"))
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("stream client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
