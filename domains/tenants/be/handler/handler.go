// Package handler exposes the provisioning pipeline over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
	platformlogging "github.com/hostgrid-io/tenant-provisioner/platform/go/logging"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/tenant"
)

const (
	problemTypeValidation = "https://hostgrid.io/problems/validation-error"
	problemTypeUpstream   = "https://hostgrid.io/problems/upstream-failure"
	problemTypeTimeout    = "https://hostgrid.io/problems/deployment-timeout"
	problemTypeInternal   = "https://hostgrid.io/problems/internal-error"
)

// problem is the application/problem+json error body.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status"`
}

// Handler wires the provisioning service to the HTTP router.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("provisioning service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the tenant provisioning endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/tenants/{customerId}/provision", h.provision)
	r.Get("/tenants/{customerId}/runs", h.runs)
}

// provision implements POST /tenants/{customerId}/provision. It runs the
// full pipeline synchronously and returns the aggregate result, or a typed
// problem body instead of terminating the process on failure.
func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")
	logger := platformlogging.FromRequest(r, h.logger)

	result, err := h.svc.Provision(r.Context(), customerID)
	if err != nil {
		logger.Error("provisioning failed", zap.String("customer", customerID), zap.Error(err))
		h.writeProblem(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// runs implements GET /tenants/{customerId}/runs.
func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")
	logger := platformlogging.FromRequest(r, h.logger)

	runs, err := h.svc.Runs(r.Context(), customerID)
	if err != nil {
		logger.Error("list runs failed", zap.String("customer", customerID), zap.Error(err))
		h.writeProblem(w, err)
		return
	}

	items := make([]runItem, 0, len(runs))
	for _, run := range runs {
		items = append(items, toRunItem(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type runItem struct {
	ID           string  `json:"id"`
	CustomerID   string  `json:"customerId"`
	VersionLabel string  `json:"versionLabel,omitempty"`
	Status       string  `json:"status"`
	Error        *string `json:"error,omitempty"`
	StartedAt    string  `json:"startedAt"`
	FinishedAt   *string `json:"finishedAt,omitempty"`
}

func toRunItem(run service.Run) runItem {
	item := runItem{
		ID:           run.ID.String(),
		CustomerID:   run.CustomerID,
		VersionLabel: run.VersionLabel,
		Status:       string(run.Status),
		Error:        run.Error,
		StartedAt:    run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if run.FinishedAt != nil {
		finished := run.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
		item.FinishedAt = &finished
	}
	return item
}

func (h *Handler) writeProblem(w http.ResponseWriter, err error) {
	var p problem
	switch {
	case errors.Is(err, tenant.ErrInvalidCustomerID):
		p = problem{Type: problemTypeValidation, Title: "Invalid customer id", Detail: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, service.ErrDeploymentTimeout):
		p = problem{Type: problemTypeTimeout, Title: "Deployment processing timed out", Detail: err.Error(), Status: http.StatusGatewayTimeout}
	case errors.Is(err, service.ErrVersionResolution),
		errors.Is(err, service.ErrFetch),
		errors.Is(err, service.ErrConfigWrite),
		errors.Is(err, service.ErrDeployment),
		errors.Is(err, service.ErrDNS):
		p = problem{Type: problemTypeUpstream, Title: "Provisioning stage failed", Detail: err.Error(), Status: http.StatusBadGateway}
	default:
		p = problem{Type: problemTypeInternal, Title: "Internal error", Status: http.StatusInternalServerError}
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
