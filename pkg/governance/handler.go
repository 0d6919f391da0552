package governance

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/entitlement"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/tenant"
)

// APIHandler provides HTTP handlers for the governance core: the approval
// gate, metric version resolver, AI guardrails, rollback orchestrator, and
// pre-deploy validator (spec.md 4.8). Named APIHandler rather than Handler
// since this package's Handler type is already taken by the rollback
// action signature (rollback.go).
type APIHandler struct {
	Gate         *ApprovalGate
	Resolver     *MetricVersionResolver
	Guardrails   *Guardrails
	Rollback     *Orchestrator
	PreDeploy    *Validator
	Entitlements *entitlement.Engine
	Logger       *slog.Logger
}

func NewAPIHandler(gate *ApprovalGate, resolver *MetricVersionResolver, guardrails *Guardrails, rollback *Orchestrator, preDeploy *Validator, entitlements *entitlement.Engine, logger *slog.Logger) *APIHandler {
	return &APIHandler{Gate: gate, Resolver: resolver, Guardrails: guardrails, Rollback: rollback, PreDeploy: preDeploy, Entitlements: entitlements, Logger: logger}
}

// Routes mounts the governance API as a route descriptor table (spec.md
// Design Note 9: FastAPI's per-route decorators are replaced by "explicit
// middleware composition and per-route required-feature declarations on a
// route descriptor"). The AI guardrail check is the one route here gated
// by a plan feature: a tenant whose plan lacks ai_insights is denied by
// entitlement.RequireFeature before handleGuardrailCheck ever runs.
func (h *APIHandler) Routes() chi.Router {
	r := chi.NewRouter()
	entitlement.Mount(r, h.Entitlements, []entitlement.RouteDescriptor{
		{Method: http.MethodPost, Path: "/change-requests/evaluate", Handler: h.handleEvaluateChangeRequest},
		{Method: http.MethodGet, Path: "/metrics/{key}/resolve", Handler: h.handleResolveMetricVersion},
		{Method: http.MethodPost, Path: "/guardrails/check", Handler: h.handleGuardrailCheck, RequiredFeature: "ai_insights"},
		{Method: http.MethodPost, Path: "/rollbacks", Handler: h.handleStartRollback},
		{Method: http.MethodGet, Path: "/pre-deploy-validation", Handler: h.handleRunPreDeployValidation},
	})
	return r
}

type evaluateChangeRequestRequest struct {
	ChangeType           string          `json:"change_type" validate:"required"`
	SubmittedAt          time.Time       `json:"submitted_at" validate:"required"`
	ChecklistCompleted   map[string]bool `json:"checklist_completed"`
	Approvals            []ApprovalRecord `json:"approvals"`
	Emergency            bool            `json:"emergency"`
	IncidentTicket       string          `json:"incident_ticket"`
	PostMortemCommitment bool            `json:"post_mortem_commitment"`
}

func (h *APIHandler) handleEvaluateChangeRequest(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	var req evaluateChangeRequestRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	cr := ChangeRequest{
		ID:                   uuid.New(),
		TenantID:             tc.Tenant.ID,
		ChangeType:           req.ChangeType,
		SubmittedAt:          req.SubmittedAt,
		ChecklistCompleted:   req.ChecklistCompleted,
		Approvals:            req.Approvals,
		Emergency:            req.Emergency,
		IncidentTicket:       req.IncidentTicket,
		PostMortemCommitment: req.PostMortemCommitment,
	}

	result := h.Gate.Evaluate(r.Context(), cr, time.Now().UTC())
	httpserver.Respond(w, http.StatusOK, result)
}

func (h *APIHandler) handleResolveMetricVersion(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("version")
	res := h.Resolver.Resolve(chi.URLParam(r, "key"), requested, time.Now().UTC())
	httpserver.Respond(w, http.StatusOK, res)
}

type guardrailCheckRequest struct {
	Action string         `json:"action" validate:"required"`
	Actor  string         `json:"actor" validate:"required"`
	Params map[string]any `json:"params"`
}

func (h *APIHandler) handleGuardrailCheck(w http.ResponseWriter, r *http.Request) {
	var req guardrailCheckRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	action := AttemptedAction{RequestID: uuid.New(), Action: req.Action, Actor: req.Actor, Params: req.Params}
	refusal, err := h.Guardrails.Check(r.Context(), action)
	if err != nil {
		h.Logger.Error("evaluating guardrail check", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to evaluate guardrails")
		return
	}

	if refusal != nil {
		httpserver.Respond(w, http.StatusForbidden, refusal)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"allowed": true})
}

type startRollbackRequest struct {
	RequesterRole string           `json:"requester_role" validate:"required"`
	Scope         RollbackScope    `json:"scope" validate:"required"`
	Actions       []RollbackAction `json:"actions" validate:"required,min=1"`
	VerifyChecks  []string         `json:"verify_checks"`
	Reversible    bool             `json:"reversible"`
}

// handleStartRollback runs a rollback request to completion synchronously
// and reports its terminal state. Per spec.md 4.8.5 the orchestrator is an
// in-process state machine with no external workflow engine, so there is
// nothing to poll afterward — the response already reflects the outcome.
func (h *APIHandler) handleStartRollback(w http.ResponseWriter, r *http.Request) {
	var req startRollbackRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	run, err := h.Rollback.Start(r.Context(), RollbackRequest{
		ID:            uuid.New(),
		RequesterRole: req.RequesterRole,
		Scope:         req.Scope,
		Actions:       req.Actions,
		VerifyChecks:  req.VerifyChecks,
		Reversible:    req.Reversible,
	})
	if err != nil {
		if de, ok := err.(*cperr.Error); ok {
			httpserver.RespondDomainError(w, de)
			return
		}
		h.Logger.Error("starting rollback", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to run rollback")
		return
	}
	httpserver.Respond(w, http.StatusOK, run)
}

// handleRunPreDeployValidation runs every registered pre-deploy check and
// returns the machine-readable report CI polls before allowing a governed
// change to ship (spec.md 4.8.4).
func (h *APIHandler) handleRunPreDeployValidation(w http.ResponseWriter, r *http.Request) {
	report := h.PreDeploy.Run(r.Context())
	httpserver.Respond(w, http.StatusOK, report)
}
