package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/service"
	customError "github.com/segyhp/loan-workflow/pkg/errors"
	"github.com/segyhp/loan-workflow/pkg/response"
)

// Actor headers
const (
	HeaderActorRole = "X-Actor-Role"
	HeaderActorName = "X-Actor-Name"
)

type WorkflowHandler struct {
	workflow *service.AuditedWorkflow
	query    *service.QueryService
	monitor  *service.SLAMonitor
	logger   *slog.Logger
}

func NewWorkflowHandler(workflow *service.AuditedWorkflow, query *service.QueryService, monitor *service.SLAMonitor, logger *slog.Logger) *WorkflowHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowHandler{
		workflow: workflow,
		query:    query,
		monitor:  monitor,
		logger:   logger,
	}
}

// RegisterRoutes mounts the API under router
func (h *WorkflowHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/applications", h.Submit).Methods(http.MethodPost)
	api.HandleFunc("/applications", h.ListApplications).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", h.GetApplication).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/quote", h.Quote).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/schedule", h.Schedule).Methods(http.MethodGet)

	api.HandleFunc("/applications/{id}/intake-accept", h.IntakeAccept).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/blacklist-check", h.CheckBlacklist).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/assessment", h.CompleteAssessment).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/approve", h.Approve).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/reject", h.Reject).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/disburse", h.Disburse).Methods(http.MethodPost)

	api.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)
	api.HandleFunc("/statuses", h.Statuses).Methods(http.MethodGet)
	api.HandleFunc("/queues/{section}", h.Queue).Methods(http.MethodGet)
	api.HandleFunc("/overdue", h.Overdue).Methods(http.MethodGet)

	api.HandleFunc("/customers/{identity}/applications", h.CustomerApplications).Methods(http.MethodGet)
	api.HandleFunc("/customers/{identity}/applications/{id}", h.CustomerApplication).Methods(http.MethodGet)
	api.HandleFunc("/customers/{identity}/stats", h.CustomerStats).Methods(http.MethodGet)
}

func actorFrom(r *http.Request) service.Actor {
	role := strings.TrimSpace(r.Header.Get(HeaderActorRole))
	if role == "" {
		return service.Anonymous
	}
	return service.Actor{Role: role, Name: strings.TrimSpace(r.Header.Get(HeaderActorName))}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, customError.WrapInvalidInput("application id must be a UUID")
	}
	return id, nil
}

// decodeOptional decodes a JSON body, leaving dst untouched when the body is empty
func decodeOptional(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return customError.WrapInvalidInput("malformed JSON body: " + err.Error())
}

var statusByCode = map[string]int{
	customError.ErrCodeNotFound:              http.StatusNotFound,
	customError.ErrCodeInvalidState:          http.StatusConflict,
	customError.ErrCodeIncompleteApplication: http.StatusUnprocessableEntity,
	customError.ErrCodeNotEligible:           http.StatusUnprocessableEntity,
	customError.ErrCodeInvalidInput:          http.StatusBadRequest,
	customError.ErrCodeAccessDenied:          http.StatusForbidden,
}

// writeError maps business errors to HTTP statuses; anything else is a 500
func (h *WorkflowHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var be *customError.BusinessError
	if errors.As(err, &be) {
		if status, ok := statusByCode[be.Code]; ok {
			response.Fail(w, status, be.Code, be.Message)
			return
		}
	}

	h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	code := customError.CodeOf(err)
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	response.Fail(w, http.StatusInternalServerError, code, "internal server error")
}

func (h *WorkflowHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, customError.WrapInvalidInput("malformed JSON body: "+err.Error()))
		return
	}

	app, err := h.workflow.Submit(r.Context(), actorFrom(r), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, app)
}

func (h *WorkflowHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.LoanStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := domain.ParseStatus(strings.ToUpper(strings.TrimSpace(part)))
			if err != nil {
				h.writeError(w, r, customError.WrapInvalidInput(err.Error()))
				return
			}
			statuses = append(statuses, status)
		}
	}

	apps, err := h.query.ListByStatus(r.Context(), statuses...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, apps)
}

func (h *WorkflowHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	app, err := h.query.GetApplication(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, app)
}

func (h *WorkflowHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	quote, err := h.query.Quote(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, quote)
}

func (h *WorkflowHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	schedule, err := h.query.RepaymentSchedule(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, schedule)
}

// transitionFunc is a workflow call taking only the path id
type transitionFunc func(r *http.Request, id uuid.UUID) (*domain.LoanApplication, error)

func (h *WorkflowHandler) runTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	app, err := fn(r, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, app)
}

func (h *WorkflowHandler) IntakeAccept(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, id uuid.UUID) (*domain.LoanApplication, error) {
		return h.workflow.IntakeAccept(r.Context(), actorFrom(r), id)
	})
}

func (h *WorkflowHandler) CheckBlacklist(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, id uuid.UUID) (*domain.LoanApplication, error) {
		return h.workflow.CheckBlacklistOrReject(r.Context(), actorFrom(r), id)
	})
}

func (h *WorkflowHandler) CompleteAssessment(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, id uuid.UUID) (*domain.LoanApplication, error) {
		var req domain.NoteRequest
		if err := decodeOptional(r, &req); err != nil {
			return nil, err
		}
		return h.workflow.CompleteAssessment(r.Context(), actorFrom(r), id, req.Note)
	})
}

func (h *WorkflowHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, id uuid.UUID) (*domain.LoanApplication, error) {
		var req domain.NoteRequest
		if err := decodeOptional(r, &req); err != nil {
			return nil, err
		}
		return h.workflow.Approve(r.Context(), actorFrom(r), id, req.Note)
	})
}

func (h *WorkflowHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, id uuid.UUID) (*domain.LoanApplication, error) {
		var req domain.RejectRequest
		if err := decodeOptional(r, &req); err != nil {
			return nil, err
		}
		return h.workflow.Reject(r.Context(), actorFrom(r), id, req.Reason)
	})
}

func (h *WorkflowHandler) Disburse(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, id uuid.UUID) (*domain.LoanApplication, error) {
		return h.workflow.Disburse(r.Context(), actorFrom(r), id)
	})
}

func (h *WorkflowHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.query.CountByStatus(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, counts)
}

type statusView struct {
	Status      domain.LoanStatus `json:"status"`
	DisplayName string            `json:"display_name"`
	SLA         string            `json:"sla,omitempty"`
	Terminal    bool              `json:"terminal"`
}

func (h *WorkflowHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	views := make([]statusView, 0, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		info := status.Info()
		view := statusView{Status: status, DisplayName: info.DisplayName, Terminal: info.Terminal}
		if info.SLA > 0 {
			view.SLA = info.SLA.String()
		}
		views = append(views, view)
	}
	response.Success(w, views)
}

type queueItem struct {
	Application *domain.LoanApplication `json:"application"`
	CanModify   bool                    `json:"can_modify"`
}

func (h *WorkflowHandler) Queue(w http.ResponseWriter, r *http.Request) {
	section, err := domain.ParseSection(strings.ToLower(mux.Vars(r)["section"]))
	if err != nil {
		h.writeError(w, r, customError.WrapInvalidInput(err.Error()))
		return
	}

	apps, err := h.query.ListSection(r.Context(), section)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]queueItem, 0, len(apps))
	for _, app := range apps {
		items = append(items, queueItem{Application: app, CanModify: domain.CanModify(app, section)})
	}
	response.Success(w, items)
}

func (h *WorkflowHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	overdue, err := h.monitor.FindOverdue(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if overdue == nil {
		overdue = []*service.OverdueApplication{}
	}
	response.Success(w, overdue)
}

func (h *WorkflowHandler) CustomerApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.query.ListCustomerApplications(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, apps)
}

func (h *WorkflowHandler) CustomerApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	app, err := h.query.GetCustomerApplication(r.Context(), mux.Vars(r)["identity"], id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, app)
}

func (h *WorkflowHandler) CustomerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.CustomerStats(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, stats)
}
