// Package http exposes the transition engine over a JSON API routed with chi.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/internal/runtime"
	"github.com/aretw0/flowra/pkg/bulk"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// Server serves the engine for entities located through an EntityResolver.
type Server struct {
	engine   *runtime.Engine
	entities ports.EntityResolver
	bulk     *bulk.Service
	logger   *slog.Logger
	mounts   map[string]http.Handler
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHandler mounts an extra handler, e.g. a metrics endpoint.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.mounts[pattern] = h
	}
}

// NewHandler builds the router.
//
//	GET  /workflows/{workflow}/definition
//	GET  /workflows/{workflow}/states/{state}/owners
//	POST /workflows/{workflow}/bulk/{transition}
//	GET  /workflows/{workflow}/entities/{type}/{id}
//	GET  /workflows/{workflow}/entities/{type}/{id}/history
//	GET  /workflows/{workflow}/entities/{type}/{id}/available
//	POST /workflows/{workflow}/entities/{type}/{id}/transitions/{transition}
//	POST /workflows/{workflow}/entities/{type}/{id}/jump
func NewHandler(engine *runtime.Engine, entities ports.EntityResolver, opts ...Option) http.Handler {
	s := &Server{
		engine:   engine,
		entities: entities,
		logger:   logging.NewNop(),
		mounts:   make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bulk = bulk.NewService(engine, bulk.WithLogger(s.logger))

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for pattern, h := range s.mounts {
		r.Handle(pattern, h)
	}

	r.Route("/workflows/{workflow}", func(r chi.Router) {
		r.Get("/definition", s.Definition)
		r.Get("/states/{state}/owners", s.Owners)
		r.Post("/bulk/{transition}", s.Bulk)

		r.Route("/entities/{type}/{id}", func(r chi.Router) {
			r.Get("/", s.Current)
			r.Get("/history", s.History)
			r.Get("/available", s.Available)
			r.Post("/transitions/{transition}", s.Apply)
			r.Post("/jump", s.Jump)
		})
	})
	return r
}

type ApplyRequest struct {
	AppliedBy string         `json:"applied_by"`
	Comments  []string       `json:"comments"`
	Metadata  map[string]any `json:"metadata"`
}

type JumpRequest struct {
	Target    domain.StateID `json:"target"`
	JumpKey   string         `json:"jump_key"`
	AppliedBy string         `json:"applied_by"`
}

type OwnerRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type BulkRequest struct {
	Targets         []OwnerRef `json:"targets"`
	AppliedBy       string     `json:"applied_by"`
	Comments        []string   `json:"comments"`
	ContinueOnError bool       `json:"continue_on_error"`
	ChunkSize       int        `json:"chunk_size"`
}

type TransitionView struct {
	Key  string         `json:"key"`
	From domain.StateID `json:"from"`
	To   domain.StateID `json:"to"`
}

type StateResponse struct {
	Workflow  string           `json:"workflow"`
	Owner     domain.Owner     `json:"owner"`
	Current   domain.StateID   `json:"current"`
	Status    *domain.Record   `json:"status,omitempty"`
	Available []TransitionView `json:"available,omitempty"`
}

type ApplyResponse struct {
	Status      *domain.Record `json:"status"`
	Applied     *domain.Record `json:"applied"`
	ActionError string         `json:"action_error,omitempty"`
	SubflowErr  string         `json:"subflow_error,omitempty"`
}

type BulkResponse struct {
	Succeeded []OwnerRef     `json:"succeeded"`
	Failed    []BulkFailure  `json:"failed"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

type BulkFailure struct {
	Target OwnerRef `json:"target"`
	Error  string   `json:"error"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) instance(w http.ResponseWriter, r *http.Request) (*runtime.Instance, bool) {
	ent, err := s.entities.Resolve(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	return s.engine.For(ent, chi.URLParam(r, "workflow")), true
}

// Current handles GET /workflows/{workflow}/entities/{type}/{id}.
func (s *Server) Current(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}
	current, err := inst.CurrentState(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := StateResponse{
		Workflow: inst.Workflow(),
		Current:  current,
	}
	resp.Owner.ID, resp.Owner.Type = inst.Entity().Identity()

	status, err := inst.Status(r.Context())
	switch {
	case err == nil:
		resp.Status = status
	case !errors.Is(err, domain.ErrStatusNotFound):
		s.fail(w, err)
		return
	}

	available, err := inst.Available(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	resp.Available = views(available)
	s.write(w, http.StatusOK, resp)
}

// History handles GET .../history.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}
	history, err := inst.History(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.write(w, http.StatusOK, history)
}

// Available handles GET .../available.
func (s *Server) Available(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}
	available, err := inst.Available(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.write(w, http.StatusOK, views(available))
}

// Apply handles POST .../transitions/{transition}. An empty body is allowed.
func (s *Server) Apply(w http.ResponseWriter, r *http.Request) {
	var body ApplyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.badRequest(w, err)
			return
		}
	}
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}

	var opts []runtime.ApplyOption
	if body.AppliedBy != "" {
		opts = append(opts, runtime.WithAppliedBy(body.AppliedBy))
	}
	if len(body.Comments) > 0 {
		opts = append(opts, runtime.WithComment(body.Comments...))
	}
	if len(body.Metadata) > 0 {
		opts = append(opts, runtime.WithMetadata(body.Metadata))
	}

	res, err := inst.Apply(r.Context(), chi.URLParam(r, "transition"), opts...)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.write(w, http.StatusOK, applyResponse(res))
}

// Jump handles POST .../jump.
func (s *Server) Jump(w http.ResponseWriter, r *http.Request) {
	var body JumpRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, err)
		return
	}
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}
	res, err := inst.JumpTo(r.Context(), body.Target, body.JumpKey, body.AppliedBy)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.write(w, http.StatusOK, applyResponse(res))
}

// Bulk handles POST /workflows/{workflow}/bulk/{transition}.
// Partial results are reported even when the run aborts.
func (s *Server) Bulk(w http.ResponseWriter, r *http.Request) {
	var body BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, err)
		return
	}

	targets := make([]any, 0, len(body.Targets))
	for _, ref := range body.Targets {
		ent, err := s.entities.Resolve(r.Context(), ref.Type, ref.ID)
		if err != nil {
			s.fail(w, err)
			return
		}
		targets = append(targets, ent)
	}

	result, err := s.bulk.Apply(r.Context(), chi.URLParam(r, "workflow"), targets, chi.URLParam(r, "transition"), bulk.Options{
		AppliedBy:       body.AppliedBy,
		Comments:        body.Comments,
		ContinueOnError: body.ContinueOnError,
		ChunkSize:       body.ChunkSize,
	})
	if result == nil {
		s.fail(w, err)
		return
	}

	resp := BulkResponse{Succeeded: []OwnerRef{}, Failed: []BulkFailure{}}
	for _, ok := range result.Successes {
		resp.Succeeded = append(resp.Succeeded, body.Targets[ok.Index])
	}
	for _, f := range result.Failures {
		resp.Failed = append(resp.Failed, BulkFailure{Target: body.Targets[f.Index], Error: f.Err.Error()})
	}
	status := http.StatusOK
	if err != nil {
		code, e := describe(err)
		resp.Error = &e
		status = code
	}
	s.write(w, status, resp)
}

// Definition handles GET /workflows/{workflow}/definition.
func (s *Server) Definition(w http.ResponseWriter, r *http.Request) {
	def, err := s.engine.Definition(r.Context(), chi.URLParam(r, "workflow"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.write(w, http.StatusOK, def.Artifacts())
}

// Owners handles GET /workflows/{workflow}/states/{state}/owners.
func (s *Server) Owners(w http.ResponseWriter, r *http.Request) {
	owners, err := s.engine.OwnersIn(r.Context(), chi.URLParam(r, "workflow"), domain.StateID(chi.URLParam(r, "state")))
	if err != nil {
		s.fail(w, err)
		return
	}
	if owners == nil {
		owners = []domain.Owner{}
	}
	s.write(w, http.StatusOK, owners)
}

func views(ts []*domain.Transition) []TransitionView {
	out := make([]TransitionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, TransitionView{Key: t.Key, From: t.From, To: t.To})
	}
	return out
}

func applyResponse(res *runtime.Result) ApplyResponse {
	resp := ApplyResponse{Status: res.Status, Applied: res.Applied}
	if res.ActionErr != nil {
		resp.ActionError = res.ActionErr.Error()
	}
	if res.SubflowErr != nil {
		resp.SubflowErr = res.SubflowErr.Error()
	}
	return resp
}

func (s *Server) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.logger.Warn("invalid request body", "error", err)
	s.write(w, http.StatusBadRequest, ErrorResponse{Code: "bad_request", Message: "invalid request body"})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, resp := describe(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.write(w, status, resp)
}

// describe maps engine errors to HTTP statuses.
func describe(err error) (int, ErrorResponse) {
	table := []struct {
		target error
		status int
		code   string
	}{
		{domain.ErrEntityNotFound, http.StatusNotFound, "entity_not_found"},
		{domain.ErrWorkflowNotRegistered, http.StatusNotFound, "workflow_not_registered"},
		{domain.ErrTransitionNotRegistered, http.StatusNotFound, "transition_not_registered"},
		{domain.ErrStatusNotFound, http.StatusNotFound, "status_not_found"},
		{domain.ErrGuardDenied, http.StatusForbidden, "guard_denied"},
		{domain.ErrTransitionNotApplicable, http.StatusConflict, "transition_not_applicable"},
		{domain.ErrSubflowBlocked, http.StatusConflict, "subflow_blocked"},
		{domain.ErrInvalidJump, http.StatusUnprocessableEntity, "invalid_jump"},
		{domain.ErrIncompatibleTarget, http.StatusUnprocessableEntity, "incompatible_target"},
		{domain.ErrDefinition, http.StatusInternalServerError, "definition"},
		{domain.ErrPersistence, http.StatusServiceUnavailable, "persistence"},
	}
	for _, row := range table {
		if errors.Is(err, row.target) {
			return row.status, ErrorResponse{Code: row.code, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: err.Error()}
}
