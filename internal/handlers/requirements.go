package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reciclo/broker/internal/deal"
	"github.com/reciclo/broker/internal/report"
	"github.com/reciclo/broker/internal/user"
)

// dealResponse is the aggregate view returned by most commands: callers see
// the state their command produced, including side effects on other records.
type dealResponse struct {
	Requirement deal.Requirement  `json:"requirement"`
	Offers      []deal.Offer      `json:"offers"`
	Commitments []deal.Commitment `json:"commitments"`
	Committed   float64           `json:"committed"`
}

func toDealResponse(d *deal.Deal) dealResponse {
	return dealResponse{
		Requirement: d.Requirement,
		Offers:      d.Offers,
		Commitments: d.Commitments,
		Committed:   d.TotalCommitted(),
	}
}

// CreateRequirement handles POST /requirements.
func (h *Handlers) CreateRequirement(w http.ResponseWriter, r *http.Request) {
	var in deal.RequirementInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.deals.CreateRequirement(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListRequirements handles GET /requirements?status=.
func (h *Handlers) ListRequirements(w http.ResponseWriter, r *http.Request) {
	status := deal.RequirementStatus(r.URL.Query().Get("status"))
	out, err := h.deals.ListRequirements(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetDeal handles GET /requirements/{id}.
func (h *Handlers) GetDeal(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.ViewDeal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// RequirementReport handles GET /requirements/{id}/report: the plain-text
// dossier with redacted party names.
func (h *Handlers) RequirementReport(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.ViewDeal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	buyer := h.resolveParty(r, d.Requirement.BuyerID)
	sellers := make(map[string]report.Party, len(d.Offers))
	for _, o := range d.Offers {
		sellers[o.SellerID] = h.resolveParty(r, o.SellerID)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(report.RequirementDossier(d, buyer, sellers)))
}

// resolveParty looks up a display name; an unresolvable party renders as
// its opaque id.
func (h *Handlers) resolveParty(r *http.Request, userID string) report.Party {
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		return report.Party{ID: userID, DisplayName: userID}
	}
	return report.Party{ID: u.ID, DisplayName: u.DisplayName}
}

// ConfirmRequirement handles POST /requirements/{id}/confirm.
func (h *Handlers) ConfirmRequirement(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.ConfirmRequirement(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// CancelRequirement handles POST /requirements/{id}/cancel.
func (h *Handlers) CancelRequirement(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.CancelRequirement(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// RequestRequirementEdit handles POST /requirements/{id}/edits.
func (h *Handlers) RequestRequirementEdit(w http.ResponseWriter, r *http.Request) {
	var edit deal.RequirementEdit
	if err := decode(r, &edit); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.RequestRequirementEdit(r.Context(), actor(r), chi.URLParam(r, "id"), edit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

type decisionRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// DecideAdminRequirementEdit handles POST /requirements/{id}/edits/decision,
// the owner's ruling on an admin-proposed edit.
func (h *Handlers) DecideAdminRequirementEdit(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.DecideAdminRequirementEdit(r.Context(), actor(r), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// RequestRequirementDeletion handles POST /requirements/{id}/deletion-request.
func (h *Handlers) RequestRequirementDeletion(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.RequestRequirementDeletion(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// RegisterUser handles POST /users.
func (h *Handlers) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role        user.Role `json:"role"`
		Email       string    `json:"email"`
		DisplayName string    `json:"displayName"`
		Company     string    `json:"company"`
		Phone       string    `json:"phone"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.users.Register(r.Context(), req.Role, req.Email, req.DisplayName, req.Company, req.Phone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// GetUser handles GET /users/{id}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// RequestProfileChange handles POST /users/{id}/changes. Only the profile
// owner queues changes on it.
func (h *Handlers) RequestProfileChange(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if actor(r).ID != userID {
		writeErrorStatus(w, http.StatusForbidden, "only the profile owner requests changes")
		return
	}
	var req struct {
		Field    user.Field `json:"field"`
		NewValue string     `json:"newValue"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.users.RequestChange(r.Context(), userID, req.Field, req.NewValue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
