package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/supplement-planner/internal/catalog"
	"github.com/eugenenazirov/supplement-planner/internal/solver"
	"github.com/eugenenazirov/supplement-planner/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// DefaultResultLimit is the number of ranked results returned when a request
// does not ask for a specific number.
const DefaultResultLimit = 20

// Handler wires solver and storage dependencies into HTTP handlers.
type Handler struct {
	solver      solver.Solver
	storage     storage.Storage
	resultLimit int
	logger      *zap.Logger

	clock func() time.Time

	mu               sync.RWMutex
	catalogUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithResultLimit sets how many ranked results a solve returns by default.
func WithResultLimit(limit int) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.resultLimit = limit
		}
	}
}

// WithHandlerLogger attaches a logger used for solver failures.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(s solver.Solver, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		solver:      s,
		storage:     store,
		resultLimit: DefaultResultLimit,
		logger:      zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.catalogUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListSupplements(w http.ResponseWriter, r *http.Request) {
	_ = r
	sups, err := h.storage.ListSupplements()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, supplementsResponse{
		Supplements: sups,
		UpdatedAt:   h.currentCatalogUpdatedAt(),
	})
}

func (h *Handler) handleGetSupplement(w http.ResponseWriter, r *http.Request) {
	sup, err := h.storage.GetSupplement(r.PathValue("id"))
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sup)
}

func (h *Handler) handleCreateSupplement(w http.ResponseWriter, r *http.Request) {
	var sup catalog.Supplement
	if err := json.NewDecoder(r.Body).Decode(&sup); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	saved, err := h.storage.CreateSupplement(sup)
	if errors.Is(err, storage.ErrAlreadyExists) {
		id := strings.TrimSpace(sup.ID)
		writeError(w, http.StatusConflict, "Supplement exists", err.Error(), "Use PUT /api/supplements/"+id+" to replace it")
		return
	}
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.markCatalogUpdated()
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handlePutSupplement(w http.ResponseWriter, r *http.Request) {
	var sup catalog.Supplement
	if err := json.NewDecoder(r.Body).Decode(&sup); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	sup.ID = r.PathValue("id")

	saved, err := h.storage.SaveSupplement(sup)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.markCatalogUpdated()
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleDeleteSupplement(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.DeleteSupplement(r.PathValue("id")); err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.markCatalogUpdated()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListConstraints(w http.ResponseWriter, r *http.Request) {
	_ = r
	constraints, err := h.storage.ListConstraints()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, constraintsResponse{
		Constraints: constraints,
		UpdatedAt:   h.currentCatalogUpdatedAt(),
	})
}

func (h *Handler) handlePutConstraint(w http.ResponseWriter, r *http.Request) {
	var c solver.Constraint
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	name := strings.TrimSpace(r.PathValue("name"))
	if err := h.storage.SetConstraint(name, c); err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.markCatalogUpdated()
	writeJSON(w, http.StatusOK, map[string]solver.Constraint{name: c})
}

func (h *Handler) handleDeleteConstraint(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.DeleteConstraint(r.PathValue("name")); err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.markCatalogUpdated()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListRequirements(w http.ResponseWriter, r *http.Request) {
	_ = r
	reqs, err := h.storage.ListRequirements()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, requirementsResponse{
		Requirements: reqs,
		UpdatedAt:    h.currentCatalogUpdatedAt(),
	})
}

func (h *Handler) handlePutRequirement(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	req := catalog.Requirement{SupplementID: r.PathValue("supplementId"), Amount: body.Amount}
	if err := h.storage.SetRequirement(req); err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.markCatalogUpdated()
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) handleDeleteRequirement(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.DeleteRequirement(r.PathValue("supplementId")); err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.markCatalogUpdated()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	limit := h.resultLimit
	if req.Limit != nil {
		if *req.Limit <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid request", "limit must be a positive integer")
			return
		}
		limit = *req.Limit
	}

	constraints := req.Constraints
	if constraints == nil {
		stored, err := h.storage.ListConstraints()
		if err != nil {
			writeInternalError(w, err)
			return
		}
		constraints = stored
	}
	for name, c := range constraints {
		if err := catalog.ValidateConstraint(name, c); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid constraints", err.Error())
			return
		}
	}

	supplements, err := h.selectSupplements(req.SupplementIDs)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "Unknown supplement", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	requirements, err := h.selectRequirements(req.Required, supplements)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	required, err := catalog.Resolve(requirements, supplements)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid requirements", err.Error())
		return
	}
	for _, rs := range required {
		if rs.Amount < 0 {
			writeError(w, http.StatusBadRequest, "Invalid requirements", fmt.Sprintf("amount for %q must be >= 0", rs.Option.ID))
			return
		}
	}

	options := make([]solver.Option, len(supplements))
	for i, sup := range supplements {
		options[i] = sup.Option()
	}

	start := time.Now()
	results, total, solveErr := h.solver.SolveTop(r.Context(), limit, constraints, options, required...)
	elapsed := time.Since(start)

	if solveErr != nil {
		switch {
		case errors.Is(solveErr, solver.ErrTooManyCombinations):
			h.logger.Warn("solve rejected",
				zap.Int("options", len(options)),
				zap.String("request_id", requestIDFromContext(r.Context())),
				zap.Error(solveErr),
			)
			writeError(w, http.StatusUnprocessableEntity, "Search space too large", solveErr.Error(),
				"Add constraints for the ingredients of the selected supplements or select fewer supplements")
		case errors.Is(solveErr, context.Canceled), errors.Is(solveErr, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "Request canceled", solveErr.Error())
		default:
			writeInternalError(w, solveErr)
		}
		return
	}

	resp := solveResponse{
		Results:           make([]resultResponse, len(results)),
		TotalResults:      total,
		CalculationTimeMs: elapsed.Milliseconds(),
	}
	for i, res := range results {
		resp.Results[i] = newResultResponse(res)
	}
	writeJSON(w, http.StatusOK, resp)
}

// selectSupplements returns the stored supplements named by ids, in request
// order, or every stored supplement when ids is nil.
func (h *Handler) selectSupplements(ids []string) ([]catalog.Supplement, error) {
	if ids == nil {
		return h.storage.ListSupplements()
	}

	out := make([]catalog.Supplement, 0, len(ids))
	for _, id := range ids {
		if slices.ContainsFunc(out, func(s catalog.Supplement) bool { return s.ID == id }) {
			continue
		}
		sup, err := h.storage.GetSupplement(id)
		if err != nil {
			return nil, err
		}
		out = append(out, sup)
	}
	return out, nil
}

// selectRequirements returns the requirements sent with the request, or the
// stored requirements whose supplement takes part in the solve.
func (h *Handler) selectRequirements(sent []catalog.Requirement, supplements []catalog.Supplement) ([]catalog.Requirement, error) {
	if sent != nil {
		return sent, nil
	}

	stored, err := h.storage.ListRequirements()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(stored, func(req catalog.Requirement) bool {
		return !slices.ContainsFunc(supplements, func(s catalog.Supplement) bool { return s.ID == req.SupplementID })
	}), nil
}

func (h *Handler) writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, storage.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, storage.ErrInvalidSupplement):
		writeError(w, http.StatusBadRequest, "Invalid supplement", err.Error())
	case errors.Is(err, storage.ErrInvalidConstraint):
		writeError(w, http.StatusBadRequest, "Invalid constraint", err.Error())
	case errors.Is(err, storage.ErrInvalidRequirement):
		writeError(w, http.StatusBadRequest, "Invalid requirement", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func (h *Handler) currentCatalogUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.catalogUpdatedAt
}

func (h *Handler) markCatalogUpdated() {
	h.mu.Lock()
	h.catalogUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func newResultResponse(res solver.Result) resultResponse {
	out := resultResponse{
		Supplements:         make([]selectedSupplement, 0, len(res.Supplements)),
		Amounts:             solver.CalculateAmounts(res.Supplements),
		Distance:            res.Distance,
		NumberOfSupplements: res.NumberOfSupplements,
	}
	for _, entry := range res.Supplements {
		if entry.Count == 0 {
			continue
		}
		out.Supplements = append(out.Supplements, selectedSupplement{
			ID:    entry.Option.ID,
			Name:  entry.Option.Name,
			Count: entry.Count,
		})
	}
	return out
}

type solveRequest struct {
	Constraints   solver.Constraints    `json:"constraints"`
	SupplementIDs []string              `json:"supplementIds"`
	Required      []catalog.Requirement `json:"required"`
	Limit         *int                  `json:"limit"`
}

type selectedSupplement struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type resultResponse struct {
	Supplements         []selectedSupplement `json:"supplements"`
	Amounts             map[string]float64   `json:"amounts"`
	Distance            float64              `json:"distance"`
	NumberOfSupplements int                  `json:"numberOfSupplements"`
}

type solveResponse struct {
	Results           []resultResponse `json:"results"`
	TotalResults      int              `json:"totalResults"`
	CalculationTimeMs int64            `json:"calculationTimeMs"`
}

type supplementsResponse struct {
	Supplements []catalog.Supplement `json:"supplements"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

type constraintsResponse struct {
	Constraints solver.Constraints `json:"constraints"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type requirementsResponse struct {
	Requirements []catalog.Requirement `json:"requirements"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
