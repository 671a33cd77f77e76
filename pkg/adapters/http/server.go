package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/rollkit"
	"github.com/aretw0/rollkit/api"
	"github.com/aretw0/rollkit/internal/logging"
	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/ledger"
	"github.com/aretw0/rollkit/pkg/observability"
	"github.com/aretw0/rollkit/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Server serves the rollkit HTTP API.
type Server struct {
	Roller   ports.Roller
	Ledger   *ledger.Ledger
	Macros   ports.MacroLibrary
	Gatherer prometheus.Gatherer

	logger   *slog.Logger
	spec     *openapi3.T
	validate *validator.Validate
}

// Option configures the Server.
type Option func(*Server)

// WithLedger enables recording (POST /rolls with a channel) and the
// /rolls/{id} and /channels/{channel}/rolls routes.
func WithLedger(l *ledger.Ledger) Option {
	return func(s *Server) {
		s.Ledger = l
	}
}

// WithMacros enables the /macros routes and macro references in POST /rolls.
func WithMacros(lib ports.MacroLibrary) Option {
	return func(s *Server) {
		s.Macros = lib
	}
}

// WithGatherer exposes g at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}
	return doc, nil
}

// newValidator adds the "formula" tag, which bounds a formula the way
// dice.New does.
func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("formula", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= dice.MaxFormulaLength
	})
	if err != nil {
		panic(err)
	}
	return v
}

// NewHandler creates a new HTTP handler for the roller.
func NewHandler(roller ports.Roller, opts ...Option) (http.Handler, error) {
	spec, err := LoadSpec()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Roller:   roller,
		logger:   logging.NewNop(),
		spec:     spec,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(api.Spec)
	})

	r.Get("/roll", s.QuickRoll)
	r.Post("/rolls", s.CreateRoll)
	r.Post("/replay", s.ReplayRoll)
	r.Post("/parse", s.ParseFormula)

	if s.Ledger != nil {
		r.Get("/rolls/{id}", s.GetRoll)
		r.Delete("/rolls/{id}", s.DeleteRoll)
		r.Get("/channels/{channel}/rolls", s.ListChannelRolls)
	}
	if s.Macros != nil {
		r.Get("/macros", s.ListMacros)
		r.Get("/macros/{name}", s.GetMacro)
	}
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "rollkit-http",
		"version":     strings.TrimSpace(rollkit.Version),
		"api_version": apiVersion,
	})
}

// QuickRoll handles GET /roll?formula=&mode=. Nothing is recorded.
func (s *Server) QuickRoll(w http.ResponseWriter, r *http.Request) {
	var formula, modeParam string
	if err := runtime.BindQueryParameter("form", true, true, "formula", r.URL.Query(), &formula); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "mode", r.URL.Query(), &modeParam); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	mode, err := dice.ParseMode(modeParam)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	roll, err := s.Roller.Roll(r.Context(), formula, mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := resultFromRoll(roll, mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// CreateRoll handles POST /rolls. With a channel and a ledger the roll is
// recorded and 201 is returned.
func (s *Server) CreateRoll(w http.ResponseWriter, r *http.Request) {
	var body RollRequest
	if !s.decode(w, r, &body) {
		return
	}
	mode, err := dice.ParseMode(body.Mode)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	formula := body.Formula
	if formula == "" {
		if s.Macros == nil {
			s.writeError(w, r, http.StatusBadRequest, errors.New("macros are not enabled"))
			return
		}
		m, err := s.Macros.Get(r.Context(), body.Macro)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		formula = m.Formula
	}

	if body.Channel == "" {
		roll, err := s.Roller.Roll(r.Context(), formula, mode)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		res, err := resultFromRoll(roll, mode)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, res)
		return
	}

	if s.Ledger == nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("recording is not enabled"))
		return
	}
	rec, roll, err := s.Ledger.Roll(r.Context(), body.Channel, formula, mode, body.Metadata)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res := resultFromRecord(rec)
	res.Expression = roll.Expression()
	res.Warnings = roll.Warnings()
	s.writeJSON(w, http.StatusCreated, res)
}

// ReplayRoll handles POST /replay. An evaluated roll must fold back to its
// recorded total; an unevaluated one is evaluated in the requested mode.
func (s *Server) ReplayRoll(w http.ResponseWriter, r *http.Request) {
	var body ReplayRequest
	if !s.decode(w, r, &body) {
		return
	}
	mode, err := dice.ParseMode(body.Mode)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	roll, err := s.Roller.Replay(r.Context(), body.Roll, mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := roll.Verify(); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := resultFromRoll(roll, mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// ParseFormula handles POST /parse.
func (s *Server) ParseFormula(w http.ResponseWriter, r *http.Request) {
	var body ParseRequest
	if !s.decode(w, r, &body) {
		return
	}
	roll, err := s.Roller.Parse(body.Formula)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := roll.ToJSON()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ParseResult{
		Formula:    roll.Formula(),
		Normalized: roll.NormalizedFormula(),
		Warnings:   roll.Warnings(),
		Roll:       data,
	})
}

// GetRoll handles GET /rolls/{id}. The stored tree is replayed and checked
// against the recorded total; a mismatch is a 409.
func (s *Server) GetRoll(w http.ResponseWriter, r *http.Request) {
	rec, roll, err := s.Ledger.Replay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res := resultFromRecord(rec)
	res.Expression = roll.Expression()
	s.writeJSON(w, http.StatusOK, res)
}

// DeleteRoll handles DELETE /rolls/{id}.
func (s *Server) DeleteRoll(w http.ResponseWriter, r *http.Request) {
	if err := s.Ledger.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListChannelRolls handles GET /channels/{channel}/rolls.
func (s *Server) ListChannelRolls(w http.ResponseWriter, r *http.Request) {
	records, err := s.Ledger.History(r.Context(), chi.URLParam(r, "channel"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]RollResult, 0, len(records))
	for _, rec := range records {
		out = append(out, resultFromRecord(rec))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ListMacros handles GET /macros.
func (s *Server) ListMacros(w http.ResponseWriter, r *http.Request) {
	macros, err := s.Macros.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if macros == nil {
		macros = []domain.Macro{}
	}
	s.writeJSON(w, http.StatusOK, macros)
}

// GetMacro handles GET /macros/{name}.
func (s *Server) GetMacro(w http.ResponseWriter, r *http.Request) {
	m, err := s.Macros.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return false
	}
	return true
}

// StatusFor maps an engine or ledger error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRollNotFound), errors.Is(err, domain.ErrMacroNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRollMismatch), errors.Is(err, dice.ErrTotalMismatch):
		return http.StatusConflict
	case errors.Is(err, dice.ErrParse),
		errors.Is(err, dice.ErrInvalidDiceSpec),
		errors.Is(err, dice.ErrUnmatchedModifier),
		errors.Is(err, dice.ErrModifier),
		errors.Is(err, dice.ErrSerialization):
		return http.StatusBadRequest
	case errors.Is(err, dice.ErrDivisionByZero),
		errors.Is(err, dice.ErrNonTerminatingModifier),
		errors.Is(err, dice.ErrTooManyDice):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, StatusFor(err), err)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: observability.ErrorKind(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
