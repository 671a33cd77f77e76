package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/rollkit"
	"github.com/aretw0/rollkit/internal/logging"
	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/ledger"
	"github.com/aretw0/rollkit/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MacrosURI is the resource listing the macro library.
const MacrosURI = "rollkit://macros"

// RollResponse is the structured result of the roll, macro and replay tools.
type RollResponse struct {
	ID         string         `json:"id,omitempty" jsonschema_description:"Ledger ID when the roll was recorded"`
	Channel    string         `json:"channel,omitempty" jsonschema_description:"Channel the roll was recorded on"`
	Formula    string         `json:"formula" jsonschema_description:"The formula that was rolled"`
	Mode       string         `json:"mode" jsonschema_description:"random, minimize or maximize"`
	Total      float64        `json:"total" jsonschema_description:"The evaluated total"`
	Expression string         `json:"expression" jsonschema_description:"The formula with every term replaced by its total"`
	Warnings   []string       `json:"warnings,omitempty" jsonschema_description:"Unmatched modifiers that were ignored"`
	Roll       map[string]any `json:"roll" jsonschema_description:"The serialized roll, accepted by the replay tool"`
}

// ParseResponse is the structured result of the parse tool.
type ParseResponse struct {
	Formula    string         `json:"formula" jsonschema_description:"The formula as given"`
	Normalized string         `json:"normalized" jsonschema_description:"The formula rendered back from its parsed terms"`
	Warnings   []string       `json:"warnings,omitempty" jsonschema_description:"Unmatched modifiers that would be ignored"`
	Roll       map[string]any `json:"roll" jsonschema_description:"The unevaluated roll"`
}

// Server wraps a Roller and exposes it as an MCP Server.
type Server struct {
	roller    ports.Roller
	ledger    *ledger.Ledger
	macros    ports.MacroLibrary
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLedger lets the roll and macro tools record on a channel and the
// replay tool restore rolls by ID.
func WithLedger(l *ledger.Ledger) Option {
	return func(s *Server) {
		s.ledger = l
	}
}

// WithMacros enables the macro tool and the macros resource.
func WithMacros(lib ports.MacroLibrary) Option {
	return func(s *Server) {
		s.macros = lib
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(roller ports.Roller, opts ...Option) *Server {
	s := &Server{
		roller:    roller,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("rollkit-mcp", strings.TrimSpace(rollkit.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and shuts it down
// when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
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

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: roll
	s.mcpServer.AddTool(mcp.NewTool("roll",
		mcp.WithDescription("Roll a dice formula such as '4d6kh3 + 2' or '{2d20kh, 1d12}kh'."),
		mcp.WithString("formula", mcp.Required(), mcp.Description("The dice formula")),
		mcp.WithString("mode", mcp.Description("random (default), minimize or maximize")),
		mcp.WithString("channel", mcp.Description("Record the roll on this channel (optional)")),
		mcp.WithString("metadata", mcp.Description("JSON object of string metadata stored with a recorded roll")),
		mcp.WithOutputSchema[RollResponse](),
	), mcp.NewStructuredToolHandler(s.handleRoll))

	// TOOL: parse
	s.mcpServer.AddTool(mcp.NewTool("parse",
		mcp.WithDescription("Parse a dice formula without rolling it. Fails on invalid syntax."),
		mcp.WithString("formula", mcp.Required(), mcp.Description("The dice formula")),
		mcp.WithOutputSchema[ParseResponse](),
	), mcp.NewStructuredToolHandler(s.handleParse))

	// TOOL: replay
	s.mcpServer.AddTool(mcp.NewTool("replay",
		mcp.WithDescription("Restore a serialized roll, or a recorded roll by ID, and verify its total."),
		mcp.WithString("roll", mcp.Description("The serialized roll as JSON")),
		mcp.WithString("id", mcp.Description("ID of a recorded roll")),
		mcp.WithString("mode", mcp.Description("Mode used if the roll was serialized before evaluation")),
		mcp.WithOutputSchema[RollResponse](),
	), mcp.NewStructuredToolHandler(s.handleReplay))

	if s.macros != nil {
		// TOOL: macro
		s.mcpServer.AddTool(mcp.NewTool("macro",
			mcp.WithDescription("Roll a named formula from the macro library (see "+MacrosURI+")."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Macro name")),
			mcp.WithString("mode", mcp.Description("random (default), minimize or maximize")),
			mcp.WithString("channel", mcp.Description("Record the roll on this channel (optional)")),
			mcp.WithOutputSchema[RollResponse](),
		), mcp.NewStructuredToolHandler(s.handleMacro))
	}
}

func (s *Server) registerResources() {
	if s.macros == nil {
		return
	}
	// EXPOSE: rollkit://macros
	s.mcpServer.AddResource(mcp.NewResource(MacrosURI, "Macro Library",
		mcp.WithResourceDescription("Named dice formulas"),
		mcp.WithMIMEType("application/json"),
	), s.readMacros)
}

func (s *Server) handleRoll(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RollResponse, error) {
	formula, _ := args["formula"].(string)
	mode, err := modeArg(args)
	if err != nil {
		return RollResponse{}, err
	}
	channel, _ := args["channel"].(string)

	var meta map[string]string
	if metaStr, ok := args["metadata"].(string); ok && metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			return RollResponse{}, fmt.Errorf("invalid metadata: %w", err)
		}
	}
	return s.roll(ctx, formula, mode, channel, meta)
}

func (s *Server) handleMacro(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RollResponse, error) {
	name, _ := args["name"].(string)
	mode, err := modeArg(args)
	if err != nil {
		return RollResponse{}, err
	}
	channel, _ := args["channel"].(string)

	m, err := s.macros.Get(ctx, name)
	if err != nil {
		return RollResponse{}, err
	}
	return s.roll(ctx, m.Formula, mode, channel, map[string]string{"macro": m.Name})
}

func (s *Server) handleParse(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ParseResponse, error) {
	formula, _ := args["formula"].(string)
	r, err := s.roller.Parse(formula)
	if err != nil {
		return ParseResponse{}, fmt.Errorf("parse failed: %w", err)
	}
	tree, err := treeOf(r)
	if err != nil {
		return ParseResponse{}, err
	}
	return ParseResponse{
		Formula:    r.Formula(),
		Normalized: r.NormalizedFormula(),
		Warnings:   warningsOf(r),
		Roll:       tree,
	}, nil
}

func (s *Server) handleReplay(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RollResponse, error) {
	data, _ := args["roll"].(string)
	id, _ := args["id"].(string)
	mode, err := modeArg(args)
	if err != nil {
		return RollResponse{}, err
	}

	switch {
	case id != "":
		if s.ledger == nil {
			return RollResponse{}, errors.New("replay by id requires a ledger")
		}
		rec, r, err := s.ledger.Replay(ctx, id)
		if err != nil {
			return RollResponse{}, fmt.Errorf("replay failed: %w", err)
		}
		resp, err := responseOf(r, mode)
		if err != nil {
			return RollResponse{}, err
		}
		resp.ID = rec.ID
		resp.Channel = rec.Channel
		resp.Mode = rec.Mode
		return resp, nil
	case data != "":
		r, err := s.roller.Replay(ctx, []byte(data), mode)
		if err != nil {
			return RollResponse{}, fmt.Errorf("replay failed: %w", err)
		}
		if err := r.Verify(); err != nil {
			return RollResponse{}, fmt.Errorf("replay failed: %w", err)
		}
		return responseOf(r, mode)
	default:
		return RollResponse{}, errors.New("either roll or id is required")
	}
}

func (s *Server) readMacros(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	macros, err := s.macros.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list macros: %w", err)
	}
	if macros == nil {
		macros = []domain.Macro{}
	}
	jsonBytes, err := json.Marshal(macros)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MacrosURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

func (s *Server) roll(ctx context.Context, formula string, mode dice.Mode, channel string, meta map[string]string) (RollResponse, error) {
	if channel == "" {
		r, err := s.roller.Roll(ctx, formula, mode)
		if err != nil {
			return RollResponse{}, fmt.Errorf("roll failed: %w", err)
		}
		return responseOf(r, mode)
	}

	if s.ledger == nil {
		return RollResponse{}, errors.New("recording requires a ledger")
	}
	rec, r, err := s.ledger.Roll(ctx, channel, formula, mode, meta)
	if err != nil {
		s.logger.Warn("MCP roll failed", "channel", channel, "err", err)
		return RollResponse{}, fmt.Errorf("roll failed: %w", err)
	}
	resp, err := responseOf(r, mode)
	if err != nil {
		return RollResponse{}, err
	}
	resp.ID = rec.ID
	resp.Channel = rec.Channel
	return resp, nil
}

func modeArg(args map[string]interface{}) (dice.Mode, error) {
	s, _ := args["mode"].(string)
	return dice.ParseMode(s)
}

func responseOf(r *dice.Roll, mode dice.Mode) (RollResponse, error) {
	total, err := r.Total()
	if err != nil {
		return RollResponse{}, err
	}
	tree, err := treeOf(r)
	if err != nil {
		return RollResponse{}, err
	}
	return RollResponse{
		Formula:    r.Formula(),
		Mode:       mode.String(),
		Total:      total,
		Expression: r.Expression(),
		Warnings:   warningsOf(r),
		Roll:       tree,
	}, nil
}

func treeOf(r *dice.Roll) (map[string]any, error) {
	data, err := r.ToJSON()
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func warningsOf(r *dice.Roll) []string {
	var out []string
	for _, w := range r.Warnings() {
		out = append(out, w.Error())
	}
	return out
}
