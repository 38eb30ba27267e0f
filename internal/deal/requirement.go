package deal

import (
	"strings"
	"time"

	"github.com/reciclo/broker/internal/ident"
)

// DateRange is a validity window with inclusive bounds.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the range is not inverted.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return validationf("validity window must have both start and end dates")
	}
	if r.End.Before(r.Start) {
		return validationf("validity window ends before it starts")
	}
	return nil
}

// Contains reports whether other falls entirely inside r.
func (r DateRange) Contains(other DateRange) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// Expired reports whether the window has already closed at the given time.
func (r DateRange) Expired(now time.Time) bool {
	return now.After(r.End)
}

// ClauseDoc is free text describing a clause (quality, logistics), optionally
// backed by either an uploaded attachment or a reference URL, never both.
type ClauseDoc struct {
	Text          string `json:"text"`
	AttachmentKey string `json:"attachmentKey,omitempty"`
	ReferenceURL  string `json:"referenceUrl,omitempty"`
}

// Validate enforces the attachment/URL exclusivity.
func (d ClauseDoc) Validate(clause string) error {
	if d.AttachmentKey != "" && d.ReferenceURL != "" {
		return validationf("%s document carries both an attachment and a reference URL", clause)
	}
	return nil
}

// MaterialSpec identifies the material a requirement is for.
type MaterialSpec struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Description string `json:"description,omitempty"`
}

// QuantityIncrease is the pending sub-protocol state opened when a buyer
// accepts an offer that over-subscribes the remaining volume. The new total
// and the offer that triggered it are always present together.
type QuantityIncrease struct {
	NewTotal          float64   `json:"newTotal"`
	TriggeringOfferID string    `json:"triggeringOfferId"`
	RequestedAt       time.Time `json:"requestedAt"`
}

// RequirementEdit is the typed partial snapshot of a proposed requirement
// edit. Only fields legal to change appear here; nil means unchanged.
type RequirementEdit struct {
	TotalVolume   *float64   `json:"totalVolume,omitempty"`
	Frequency     *string    `json:"frequency,omitempty"`
	QualityText   *string    `json:"qualityText,omitempty"`
	LogisticsText *string    `json:"logisticsText,omitempty"`
	DeliveryPlace *string    `json:"deliveryPlace,omitempty"`
	PriceFormula  *Formula   `json:"priceFormula,omitempty"`
	PaymentType   *string    `json:"paymentType,omitempty"`
	PaymentMethod *string    `json:"paymentMethod,omitempty"`
	WindowEnd     *time.Time `json:"windowEnd,omitempty"`
	Note          string     `json:"note,omitempty"`
	ProposedBy    string     `json:"proposedBy"`
}

// Empty reports whether the edit changes nothing.
func (e RequirementEdit) Empty() bool {
	return e.TotalVolume == nil && e.Frequency == nil && e.QualityText == nil &&
		e.LogisticsText == nil && e.DeliveryPlace == nil && e.PriceFormula == nil &&
		e.PaymentType == nil && e.PaymentMethod == nil && e.WindowEnd == nil
}

// Validate rejects edits that would break the requirement's own invariants.
func (e RequirementEdit) Validate() error {
	if e.Empty() {
		return validationf("edit proposal changes no fields")
	}
	if e.TotalVolume != nil && *e.TotalVolume <= 0 {
		return validationf("total volume must be positive")
	}
	if e.PriceFormula != nil {
		if err := e.PriceFormula.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Requirement is a buyer's standing demand for a recurring supply of
// material. It is the aggregate root: offers and commitments hang off it
// and all mutations to the three are serialized together.
type Requirement struct {
	ID      string            `json:"id"`
	BuyerID string            `json:"buyerId"`
	Status  RequirementStatus `json:"status"`

	Material    MaterialSpec `json:"material"`
	TotalVolume float64      `json:"totalVolume"`
	Unit        string       `json:"unit"`
	Frequency   string       `json:"frequency"`

	Quality       ClauseDoc `json:"quality"`
	Logistics     ClauseDoc `json:"logistics"`
	DeliveryPlace string    `json:"deliveryPlace"`

	PriceFormula  Formula `json:"priceFormula"`
	PaymentType   string  `json:"paymentType"`
	PaymentMethod string  `json:"paymentMethod"`

	// ManagementFeePerKg is the buyer-side per-kilogram charge, mirrored by
	// the seller-side penalty fee to keep incentives aligned.
	ManagementFeePerKg float64 `json:"managementFeePerKg"`

	Window DateRange `json:"window"`

	PendingEdits    *RequirementEdit  `json:"pendingEdits,omitempty"`
	PendingIncrease *QuantityIncrease `json:"pendingIncrease,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`

	// PendingSince is set whenever the record enters a status that waits on
	// somebody's decision, so stale reviews can be surfaced operationally.
	PendingSince *time.Time `json:"pendingSince,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RequirementInput is the content payload for creating a requirement. The
// caller never supplies status, owner stamps, or timestamps; the core sets
// those itself.
type RequirementInput struct {
	Material           MaterialSpec `json:"material"`
	TotalVolume        float64      `json:"totalVolume"`
	Unit               string       `json:"unit"`
	Frequency          string       `json:"frequency"`
	Quality            ClauseDoc    `json:"quality"`
	Logistics          ClauseDoc    `json:"logistics"`
	DeliveryPlace      string       `json:"deliveryPlace"`
	PriceFormula       Formula      `json:"priceFormula"`
	PaymentType        string       `json:"paymentType"`
	PaymentMethod      string       `json:"paymentMethod"`
	ManagementFeePerKg float64      `json:"managementFeePerKg"`
	Window             DateRange    `json:"window"`
}

// Validate checks the content payload against the requirement invariants.
func (in RequirementInput) Validate() error {
	if strings.TrimSpace(in.Material.Category) == "" {
		return validationf("material category is required")
	}
	if in.TotalVolume <= 0 {
		return validationf("total volume must be positive")
	}
	if strings.TrimSpace(in.Unit) == "" {
		return validationf("volume unit is required")
	}
	if err := in.Quality.Validate("quality"); err != nil {
		return err
	}
	if err := in.Logistics.Validate("logistics"); err != nil {
		return err
	}
	if err := in.PriceFormula.Validate(); err != nil {
		return err
	}
	if in.ManagementFeePerKg < 0 {
		return validationf("management fee cannot be negative")
	}
	return in.Window.Validate()
}

// NewRequirement creates a buyer-authored requirement awaiting moderation.
func NewRequirement(buyerID string, in RequirementInput, now time.Time) (Requirement, error) {
	if err := ident.Validate(buyerID, ident.Module, ident.KindUser); err != nil {
		return Requirement{}, referentialf("bad buyer id: %v", err)
	}
	if err := in.Validate(); err != nil {
		return Requirement{}, err
	}
	r := newRequirement(buyerID, in, now)
	r.Status = ReqPendingAdmin
	r.PendingSince = &now
	return r, nil
}

// NewRequirementOnBehalf creates an admin-authored requirement owned by the
// buyer, which lands in the owner-confirmation state instead of moderation.
func NewRequirementOnBehalf(buyerID string, in RequirementInput, now time.Time) (Requirement, error) {
	if err := ident.Validate(buyerID, ident.Module, ident.KindUser); err != nil {
		return Requirement{}, referentialf("bad buyer id: %v", err)
	}
	if err := in.Validate(); err != nil {
		return Requirement{}, err
	}
	r := newRequirement(buyerID, in, now)
	r.Status = ReqPendingBuyerApproval
	r.PendingSince = &now
	return r, nil
}

func newRequirement(buyerID string, in RequirementInput, now time.Time) Requirement {
	return Requirement{
		ID:                 ident.New(ident.KindRequirement),
		BuyerID:            buyerID,
		Material:           in.Material,
		TotalVolume:        in.TotalVolume,
		Unit:               in.Unit,
		Frequency:          in.Frequency,
		Quality:            in.Quality,
		Logistics:          in.Logistics,
		DeliveryPlace:      in.DeliveryPlace,
		PriceFormula:       in.PriceFormula,
		PaymentType:        in.PaymentType,
		PaymentMethod:      in.PaymentMethod,
		ManagementFeePerKg: in.ManagementFeePerKg,
		Window:             in.Window,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// transition moves the requirement along a declared edge, maintaining the
// pending-since marker. Callers have already checked command-specific guards.
func (r *Requirement) transition(to RequirementStatus, now time.Time) error {
	if !r.Status.CanTransition(to) {
		return transitionf("requirement", r.ID, r.Status, "transition to "+to.String())
	}
	r.setStatus(to, now)
	return nil
}

// setStatus applies a status change without consulting the transition table.
// Only the force-status override uses it directly.
func (r *Requirement) setStatus(to RequirementStatus, now time.Time) {
	r.Status = to
	switch to {
	case ReqPendingAdmin, ReqPendingBuyerApproval, ReqPendingEdit,
		ReqWaitingOwnerEditApproval, ReqPendingDeletion, ReqPendingQuantityIncrease:
		t := now
		r.PendingSince = &t
	default:
		r.PendingSince = nil
	}
	r.UpdatedAt = now
}

// applyEdit merges an approved edit snapshot into the record.
func (r *Requirement) applyEdit(e RequirementEdit) {
	if e.TotalVolume != nil {
		r.TotalVolume = *e.TotalVolume
	}
	if e.Frequency != nil {
		r.Frequency = *e.Frequency
	}
	if e.QualityText != nil {
		r.Quality.Text = *e.QualityText
	}
	if e.LogisticsText != nil {
		r.Logistics.Text = *e.LogisticsText
	}
	if e.DeliveryPlace != nil {
		r.DeliveryPlace = *e.DeliveryPlace
	}
	if e.PriceFormula != nil {
		r.PriceFormula = *e.PriceFormula
	}
	if e.PaymentType != nil {
		r.PaymentType = *e.PaymentType
	}
	if e.PaymentMethod != nil {
		r.PaymentMethod = *e.PaymentMethod
	}
	if e.WindowEnd != nil {
		r.Window.End = *e.WindowEnd
	}
}
