// Package mcp exposes a running grid as a Model Context Protocol server so
// that agents can inspect machines and inject port traffic.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/hsmgrid"
	"github.com/aretw0/hsmgrid/internal/host"
	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/aretw0/hsmgrid/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MachinesURI names the resource listing every registered machine.
const MachinesURI = "hsmgrid://machines"

// Machine is the structured form of a registered machine.
type Machine struct {
	Name  string   `json:"name" jsonschema_description:"Unique instance name"`
	State string   `json:"state,omitempty" jsonschema_description:"Active leaf state"`
	Ports []string `json:"ports" jsonschema_description:"Qualified port names"`
}

// MachineList wraps the machines for structured tool output.
type MachineList struct {
	Machines []Machine `json:"machines" jsonschema_description:"Registered machines in registration order"`
}

// Route lists the sources resolved for a destination port.
type Route struct {
	Machine string   `json:"machine" jsonschema_description:"Destination machine"`
	Port    string   `json:"port" jsonschema_description:"Destination port"`
	Sources []string `json:"sources" jsonschema_description:"Qualified source ports, possibly empty"`
}

// Ack acknowledges an accepted command.
type Ack struct {
	Accepted bool `json:"accepted"`
	Offered  int  `json:"offered,omitempty" jsonschema_description:"Machines the action was offered to"`
}

// Server wraps a host and exposes it as an MCP server.
type Server struct {
	host      *host.Host
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server over h.
func NewServer(h *host.Host, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		host:      h,
		mcpServer: server.NewMCPServer("hsmgrid-mcp", hsmgrid.Version),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_machines",
		mcp.WithDescription("List the registered machines with their active state and ports."),
		mcp.WithOutputSchema[MachineList](),
	), mcp.NewStructuredToolHandler(s.handleListMachines))

	s.mcpServer.AddTool(mcp.NewTool("resolve_route",
		mcp.WithDescription("Resolve the source ports that feed a destination port."),
		mcp.WithString("machine", mcp.Required(), mcp.Description("Destination machine name")),
		mcp.WithString("port", mcp.Required(), mcp.Description("Destination port name")),
		mcp.WithOutputSchema[Route](),
	), mcp.NewStructuredToolHandler(s.handleResolveRoute))

	s.mcpServer.AddTool(mcp.NewTool("broadcast_port_action",
		mcp.WithDescription("Offer a port action to every registered machine."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Sending port, qualified (Machine.port) or bare")),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action name")),
		mcp.WithString("payload", mcp.Description("JSON payload (optional)")),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handleBroadcast))

	s.mcpServer.AddTool(mcp.NewTool("post_event",
		mcp.WithDescription("Queue an event for a machine; it is delivered on the next tick."),
		mcp.WithString("machine", mcp.Required(), mcp.Description("Target machine name")),
		mcp.WithString("event", mcp.Required(), mcp.Description("Event name")),
		mcp.WithString("payload", mcp.Description("JSON payload (optional)")),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handlePostEvent))
}

func (s *Server) handleListMachines(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (MachineList, error) {
	return s.machines(), nil
}

func (s *Server) handleResolveRoute(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Route, error) {
	machine, _ := args["machine"].(string)
	port, _ := args["port"].(string)
	if machine == "" || port == "" {
		return Route{}, errors.New("machine and port are required")
	}

	route := Route{Machine: machine, Port: port, Sources: []string{}}
	_ = s.host.Do(func(r *registry.Registry) error {
		for _, p := range r.ResolveSourcePorts(machine, port) {
			route.Sources = append(route.Sources, p.QualifiedName())
		}
		return nil
	})
	return route, nil
}

func (s *Server) handleBroadcast(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Ack, error) {
	source, _ := args["source"].(string)
	action, _ := args["action"].(string)
	if source == "" || action == "" {
		return Ack{}, errors.New("source and action are required")
	}
	payload, err := decodePayload(args)
	if err != nil {
		return Ack{}, err
	}

	var offered int
	_ = s.host.Do(func(r *registry.Registry) error {
		offered = r.Len()
		r.BroadcastPortAction(source, action, payload)
		return nil
	})
	s.logger.Debug("mcp broadcast", "source", source, "action", action)
	return Ack{Accepted: true, Offered: offered}, nil
}

func (s *Server) handlePostEvent(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Ack, error) {
	name, _ := args["machine"].(string)
	event, _ := args["event"].(string)
	if name == "" || event == "" {
		return Ack{}, errors.New("machine and event are required")
	}
	payload, err := decodePayload(args)
	if err != nil {
		return Ack{}, err
	}

	err = s.host.Do(func(r *registry.Registry) error {
		m, ok := r.Lookup(name)
		if !ok {
			return fmt.Errorf("machine %q is not registered", name)
		}
		r.Driver().Post(m, domain.Event{Name: event, Payload: payload})
		return nil
	})
	if err != nil {
		return Ack{}, err
	}
	return Ack{Accepted: true}, nil
}

func decodePayload(args map[string]interface{}) (any, error) {
	raw, _ := args["payload"].(string)
	if raw == "" {
		return nil, nil
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return payload, nil
}

func (s *Server) machines() MachineList {
	list := MachineList{Machines: []Machine{}}
	_ = s.host.Do(func(r *registry.Registry) error {
		for _, m := range r.Instances() {
			list.Machines = append(list.Machines, describe(m))
		}
		return nil
	})
	return list
}

func describe(m ports.Machine) Machine {
	out := Machine{Name: m.Name(), Ports: []string{}}
	for _, p := range m.Ports() {
		out.Ports = append(out.Ports, p.QualifiedName())
	}
	if sm, ok := m.(interface{ State() string }); ok {
		out.State = sm.State()
	}
	return out
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(MachinesURI, "Registered machines",
		mcp.WithMIMEType("application/json"),
	), s.readMachines)
}

func (s *Server) readMachines(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.machines())
	if err != nil {
		return nil, fmt.Errorf("failed to encode machines: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MachinesURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
