package deal

import (
	"strings"
	"time"

	"github.com/reciclo/broker/internal/ident"
)

// Offer is a seller's proposal against exactly one requirement.
type Offer struct {
	ID            string      `json:"id"`
	SellerID      string      `json:"sellerId"`
	RequirementID string      `json:"requirementId"`
	Status        OfferStatus `json:"status"`

	Volume      float64 `json:"volume"`
	Unit        string  `json:"unit"` // copied from the requirement
	Frequency   string  `json:"frequency"`
	VehicleType string  `json:"vehicleType,omitempty"`

	Terms  OfferTerms `json:"terms"`
	Window DateRange  `json:"window"`

	PhotoKeys []string `json:"photoKeys,omitempty"`

	// PenaltyFeeAccepted must be true before the offer can leave creation;
	// the fee mirrors the buyer-side management fee.
	PenaltyFeeAccepted bool    `json:"penaltyFeeAccepted"`
	PenaltyFeePerKg    float64 `json:"penaltyFeePerKg"`

	PendingEdits *OfferEdit `json:"pendingEdits,omitempty"`
	Log          []LogEntry `json:"log,omitempty"`

	PendingSince *time.Time `json:"pendingSince,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OfferEdit is the typed partial snapshot of a proposed offer edit.
type OfferEdit struct {
	Volume          *float64   `json:"volume,omitempty"`
	Frequency       *string    `json:"frequency,omitempty"`
	VehicleType     *string    `json:"vehicleType,omitempty"`
	WindowStart     *time.Time `json:"windowStart,omitempty"`
	WindowEnd       *time.Time `json:"windowEnd,omitempty"`
	PenaltyFeePerKg *float64   `json:"penaltyFeePerKg,omitempty"`
	Note            string     `json:"note,omitempty"`
	ProposedBy      string     `json:"proposedBy"`
}

// Empty reports whether the edit changes nothing.
func (e OfferEdit) Empty() bool {
	return e.Volume == nil && e.Frequency == nil && e.VehicleType == nil &&
		e.WindowStart == nil && e.WindowEnd == nil && e.PenaltyFeePerKg == nil
}

// Validate rejects edits that would break the offer's own invariants.
func (e OfferEdit) Validate() error {
	if e.Empty() {
		return validationf("edit proposal changes no fields")
	}
	if e.Volume != nil && *e.Volume <= 0 {
		return validationf("offered volume must be positive")
	}
	if e.PenaltyFeePerKg != nil && *e.PenaltyFeePerKg < 0 {
		return validationf("penalty fee cannot be negative")
	}
	return nil
}

// OfferInput is the content payload for creating or resubmitting an offer.
type OfferInput struct {
	Volume             float64    `json:"volume"`
	Frequency          string     `json:"frequency"`
	VehicleType        string     `json:"vehicleType,omitempty"`
	Terms              OfferTerms `json:"terms"`
	Window             DateRange  `json:"window"`
	PhotoKeys          []string   `json:"photoKeys,omitempty"`
	PenaltyFeeAccepted bool       `json:"penaltyFeeAccepted"`
	PenaltyFeePerKg    float64    `json:"penaltyFeePerKg"`
}

// Validate checks the payload against the offer invariants and against the
// parent requirement's window and price formula.
func (in OfferInput) Validate(req Requirement) error {
	if in.Volume <= 0 {
		return validationf("offered volume must be positive")
	}
	if !in.PenaltyFeeAccepted {
		return validationf("penalty fee must be accepted before submitting")
	}
	if in.PenaltyFeePerKg < 0 {
		return validationf("penalty fee cannot be negative")
	}
	if err := in.Window.Validate(); err != nil {
		return err
	}
	if !req.Window.Contains(in.Window) {
		return validationf("offer window must fall inside the requirement window")
	}
	if err := in.Terms.Validate(); err != nil {
		return err
	}
	return nil
}

// NewOffer creates a seller-authored offer awaiting moderation. The parent
// requirement must be active and its id must validate at the boundary.
func NewOffer(sellerID string, req Requirement, in OfferInput, now time.Time) (Offer, error) {
	o, err := buildOffer(sellerID, req, in, now)
	if err != nil {
		return Offer{}, err
	}
	o.Status = OfferPendingAdmin
	o.PendingSince = &now
	return o, nil
}

// NewOfferOnBehalf creates an admin-authored offer owned by the seller,
// landing in the owner-confirmation state instead of moderation.
func NewOfferOnBehalf(sellerID string, req Requirement, in OfferInput, now time.Time) (Offer, error) {
	o, err := buildOffer(sellerID, req, in, now)
	if err != nil {
		return Offer{}, err
	}
	o.Status = OfferPendingSellerApproval
	o.PendingSince = &now
	return o, nil
}

func buildOffer(sellerID string, req Requirement, in OfferInput, now time.Time) (Offer, error) {
	if err := ident.Validate(sellerID, ident.Module, ident.KindUser); err != nil {
		return Offer{}, referentialf("bad seller id: %v", err)
	}
	if err := ident.Validate(req.ID, ident.Module, ident.KindRequirement); err != nil {
		return Offer{}, referentialf("bad requirement id: %v", err)
	}
	if req.Status != ReqActive {
		return Offer{}, transitionf("requirement", req.ID, req.Status, "receiving offers")
	}
	if sellerID == req.BuyerID {
		return Offer{}, validationf("a buyer cannot offer against their own requirement")
	}
	if err := in.Validate(req); err != nil {
		return Offer{}, err
	}

	return Offer{
		ID:                 ident.New(ident.KindOffer),
		SellerID:           sellerID,
		RequirementID:      req.ID,
		Volume:             in.Volume,
		Unit:               req.Unit,
		Frequency:          in.Frequency,
		VehicleType:        in.VehicleType,
		Terms:              in.Terms,
		Window:             in.Window,
		PhotoKeys:          in.PhotoKeys,
		PenaltyFeeAccepted: in.PenaltyFeeAccepted,
		PenaltyFeePerKg:    in.PenaltyFeePerKg,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// transition moves the offer along a declared edge.
func (o *Offer) transition(to OfferStatus, now time.Time) error {
	if !o.Status.CanTransition(to) {
		return transitionf("offer", o.ID, o.Status, "transition to "+to.String())
	}
	o.setStatus(to, now)
	return nil
}

// setStatus applies a status change without consulting the transition table.
// Only the force-status override uses it directly.
func (o *Offer) setStatus(to OfferStatus, now time.Time) {
	o.Status = to
	switch to {
	case OfferPendingAdmin, OfferPendingSellerApproval, OfferPendingEdit,
		OfferPendingDeletion, OfferPendingSellerAction, OfferWaitingOwnerEditApproval:
		t := now
		o.PendingSince = &t
	default:
		o.PendingSince = nil
	}
	o.UpdatedAt = now
}

// editable reports whether the seller may submit content changes directly.
func (o *Offer) editable() bool {
	switch o.Status {
	case OfferPendingAdmin, OfferPendingBuyer, OfferPendingEdit:
		return true
	}
	return false
}

// applyEdit merges an approved edit snapshot into the record.
func (o *Offer) applyEdit(e OfferEdit) {
	if e.Volume != nil {
		o.Volume = *e.Volume
	}
	if e.Frequency != nil {
		o.Frequency = *e.Frequency
	}
	if e.VehicleType != nil {
		o.VehicleType = *e.VehicleType
	}
	if e.WindowStart != nil {
		o.Window.Start = *e.WindowStart
	}
	if e.WindowEnd != nil {
		o.Window.End = *e.WindowEnd
	}
	if e.PenaltyFeePerKg != nil {
		o.PenaltyFeePerKg = *e.PenaltyFeePerKg
	}
}

// lastLogOfKind returns the most recent log entry of the given kind, used to
// surface the current rejection reason or feedback.
func (o *Offer) lastLogOfKind(kind EventKind) *LogEntry {
	for i := len(o.Log) - 1; i >= 0; i-- {
		if o.Log[i].Event == kind {
			return &o.Log[i]
		}
	}
	return nil
}

// RejectionReason returns the reason from the most recent rejection entry in
// the communication log, or an empty string.
func (o *Offer) RejectionReason() string {
	for i := len(o.Log) - 1; i >= 0; i-- {
		switch o.Log[i].Event {
		case EventAdminRejection, EventBuyerRejection:
			return o.Log[i].Message
		}
	}
	return ""
}

func trimmedReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", validationf("a non-empty reason is required")
	}
	return reason, nil
}
