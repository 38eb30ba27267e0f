package deal

import "time"

// Commands on the requirement side of the aggregate. Each command checks
// ownership and status guards before mutating anything, so a rejected
// command leaves the aggregate exactly as it was.

// AdminApproveRequirement activates a requirement awaiting first moderation.
func (d *Deal) AdminApproveRequirement(now time.Time) error {
	r := &d.Requirement
	if r.Status != ReqPendingAdmin {
		return transitionf("requirement", r.ID, r.Status, "admin approval")
	}
	return r.transition(ReqActive, now)
}

// AdminRejectRequirement refuses a requirement at moderation. The reason is
// mandatory and stored on the record.
func (d *Deal) AdminRejectRequirement(reason string, now time.Time) error {
	reason, err := trimmedReason(reason)
	if err != nil {
		return err
	}
	r := &d.Requirement
	if r.Status != ReqPendingAdmin {
		return transitionf("requirement", r.ID, r.Status, "admin rejection")
	}
	if err := r.transition(ReqRejected, now); err != nil {
		return err
	}
	r.RejectionReason = reason
	return nil
}

// ConfirmRequirement lets the owner activate an admin-created requirement.
func (d *Deal) ConfirmRequirement(buyerID string, now time.Time) error {
	r := &d.Requirement
	if buyerID != r.BuyerID {
		return forbiddenf("only the owner can confirm requirement %s", r.ID)
	}
	if r.Status != ReqPendingBuyerApproval {
		return transitionf("requirement", r.ID, r.Status, "owner confirmation")
	}
	return r.transition(ReqActive, now)
}

// CancelRequirement withdraws a requirement at the owner's request.
func (d *Deal) CancelRequirement(buyerID string, now time.Time) error {
	r := &d.Requirement
	if buyerID != r.BuyerID {
		return forbiddenf("only the owner can cancel requirement %s", r.ID)
	}
	return r.transition(ReqCancelled, now)
}

// RequestRequirementEdit records an owner-initiated edit awaiting admin
// review.
func (d *Deal) RequestRequirementEdit(buyerID string, edit RequirementEdit, now time.Time) error {
	r := &d.Requirement
	if buyerID != r.BuyerID {
		return forbiddenf("only the owner can edit requirement %s", r.ID)
	}
	if err := edit.Validate(); err != nil {
		return err
	}
	if r.Status != ReqActive {
		return transitionf("requirement", r.ID, r.Status, "owner edit")
	}
	if err := r.transition(ReqPendingEdit, now); err != nil {
		return err
	}
	edit.ProposedBy = buyerID
	r.PendingEdits = &edit
	return nil
}

// DecideOwnerRequirementEdit is the admin ruling on an owner-initiated edit:
// approve merges the pending snapshot, reject discards it. Either way the
// requirement returns to active.
func (d *Deal) DecideOwnerRequirementEdit(approve bool, now time.Time) error {
	r := &d.Requirement
	if r.Status != ReqPendingEdit || r.PendingEdits == nil {
		return transitionf("requirement", r.ID, r.Status, "edit decision")
	}
	if err := r.transition(ReqActive, now); err != nil {
		return err
	}
	if approve {
		r.applyEdit(*r.PendingEdits)
	}
	r.PendingEdits = nil
	return nil
}

// AdminProposeRequirementEdit records an admin edit that the owner must
// confirm before it takes effect.
func (d *Deal) AdminProposeRequirementEdit(adminID string, edit RequirementEdit, now time.Time) error {
	if err := edit.Validate(); err != nil {
		return err
	}
	r := &d.Requirement
	if r.Status != ReqActive {
		return transitionf("requirement", r.ID, r.Status, "admin edit proposal")
	}
	if err := r.transition(ReqWaitingOwnerEditApproval, now); err != nil {
		return err
	}
	edit.ProposedBy = adminID
	r.PendingEdits = &edit
	return nil
}

// DecideAdminRequirementEdit is the owner ruling on an admin-proposed edit.
// Approval overwrites the fields from the pending snapshot; rejection keeps
// the old data. Either way the requirement returns to active.
func (d *Deal) DecideAdminRequirementEdit(buyerID string, approve bool, now time.Time) error {
	r := &d.Requirement
	if buyerID != r.BuyerID {
		return forbiddenf("only the owner can decide edits on requirement %s", r.ID)
	}
	if r.Status != ReqWaitingOwnerEditApproval || r.PendingEdits == nil {
		return transitionf("requirement", r.ID, r.Status, "edit decision")
	}
	if err := r.transition(ReqActive, now); err != nil {
		return err
	}
	if approve {
		r.applyEdit(*r.PendingEdits)
	}
	r.PendingEdits = nil
	return nil
}

// RequestRequirementDeletion records the owner's request to retire the
// record, pending admin confirmation.
func (d *Deal) RequestRequirementDeletion(buyerID string, now time.Time) error {
	r := &d.Requirement
	if buyerID != r.BuyerID {
		return forbiddenf("only the owner can request deletion of requirement %s", r.ID)
	}
	if r.Status != ReqActive {
		return transitionf("requirement", r.ID, r.Status, "deletion request")
	}
	return r.transition(ReqPendingDeletion, now)
}

// DecideRequirementDeletion is the admin ruling on a deletion request.
// Approval hides the record (records are never physically deleted);
// rejection reactivates it.
func (d *Deal) DecideRequirementDeletion(approve bool, now time.Time) error {
	r := &d.Requirement
	if r.Status != ReqPendingDeletion {
		return transitionf("requirement", r.ID, r.Status, "deletion decision")
	}
	if approve {
		return r.transition(ReqHiddenByAdmin, now)
	}
	return r.transition(ReqActive, now)
}

// ApproveQuantityIncrease resolves the pending sub-protocol in the buyer's
// favor: the requirement's total is raised to the requested amount, the
// deferred commitment for the triggering offer is appended, and completion
// is recomputed.
func (d *Deal) ApproveQuantityIncrease(now time.Time) error {
	r := &d.Requirement
	if r.Status != ReqPendingQuantityIncrease || r.PendingIncrease == nil {
		return transitionf("requirement", r.ID, r.Status, "quantity increase decision")
	}
	o, err := d.Offer(r.PendingIncrease.TriggeringOfferID)
	if err != nil {
		return referentialf("triggering offer %s does not resolve", r.PendingIncrease.TriggeringOfferID)
	}
	if o.Status != OfferPendingBuyer {
		return transitionf("offer", o.ID, o.Status, "deferred approval")
	}
	// The deferred commitment is checked against the raised total before
	// anything is mutated, so a refusal leaves the aggregate untouched.
	for _, c := range d.Commitments {
		if c.OfferID == o.ID {
			return consistencyf("offer %s already has a commitment", o.ID)
		}
	}
	if d.TotalCommitted()+o.Volume > r.PendingIncrease.NewTotal {
		return consistencyf("commitment of %.3f %s would exceed the raised total of %.3f",
			o.Volume, o.Unit, r.PendingIncrease.NewTotal)
	}

	r.TotalVolume = r.PendingIncrease.NewTotal
	r.PendingIncrease = nil
	if err := r.transition(ReqActive, now); err != nil {
		return err
	}
	if err := d.appendCommitment(o, now); err != nil {
		return err
	}
	if err := o.transition(OfferApproved, now); err != nil {
		return err
	}
	if d.Fulfilled() {
		return r.transition(ReqCompleted, now)
	}
	return nil
}

// RejectQuantityIncrease resolves the pending sub-protocol against the
// buyer: the requirement reverts to active and the triggering offer is
// rejected with the given reason. Other pending offers are untouched; they
// remain with the buyer for normal evaluation.
func (d *Deal) RejectQuantityIncrease(adminID, reason string, now time.Time) error {
	reason, err := trimmedReason(reason)
	if err != nil {
		return err
	}
	r := &d.Requirement
	if r.Status != ReqPendingQuantityIncrease || r.PendingIncrease == nil {
		return transitionf("requirement", r.ID, r.Status, "quantity increase decision")
	}
	o, err := d.Offer(r.PendingIncrease.TriggeringOfferID)
	if err != nil {
		return referentialf("triggering offer %s does not resolve", r.PendingIncrease.TriggeringOfferID)
	}
	if o.Status != OfferPendingBuyer {
		return transitionf("offer", o.ID, o.Status, "deferred rejection")
	}

	r.PendingIncrease = nil
	if err := r.transition(ReqActive, now); err != nil {
		return err
	}
	if err := o.transition(OfferRejected, now); err != nil {
		return err
	}
	o.appendLog(RoleAdmin, adminID, reason, EventAdminRejection, now)
	return nil
}

// HideRequirement soft-deletes the record. Any non-terminal status can be
// forced here by moderation; hidden itself is final.
func (d *Deal) HideRequirement(now time.Time) error {
	r := &d.Requirement
	if r.Status == ReqHiddenByAdmin {
		return transitionf("requirement", r.ID, r.Status, "hide")
	}
	r.setStatus(ReqHiddenByAdmin, now)
	r.PendingEdits = nil
	r.PendingIncrease = nil
	return nil
}

// ForceRequirementStatus is the break-glass moderation override: it sets any
// valid status regardless of the transition table, including reactivating a
// terminal record. Side-state that no longer matches the forced status is
// cleared.
func (d *Deal) ForceRequirementStatus(to RequirementStatus, now time.Time) error {
	if !to.Valid() {
		return validationf("unknown requirement status %q", to)
	}
	r := &d.Requirement
	r.setStatus(to, now)
	if to != ReqPendingQuantityIncrease {
		r.PendingIncrease = nil
	}
	if to != ReqPendingEdit && to != ReqWaitingOwnerEditApproval {
		r.PendingEdits = nil
	}
	if to != ReqRejected {
		r.RejectionReason = ""
	}
	return nil
}
