package deal

import (
	"strings"
	"time"
)

// SellerAction is the seller's reply choice when the admin asks a question.
type SellerAction string

const (
	SellerActionReply         SellerAction = "reply"
	SellerActionRequestEdit   SellerAction = "request_edit"
	SellerActionRequestDelete SellerAction = "request_delete"
)

// AddOffer appends a freshly validated seller offer to the aggregate.
func (d *Deal) AddOffer(sellerID string, in OfferInput, now time.Time) (*Offer, error) {
	o, err := NewOffer(sellerID, d.Requirement, in, now)
	if err != nil {
		return nil, err
	}
	d.Offers = append(d.Offers, o)
	return &d.Offers[len(d.Offers)-1], nil
}

// AddOfferOnBehalf appends an admin-authored offer owned by the seller.
func (d *Deal) AddOfferOnBehalf(sellerID string, in OfferInput, now time.Time) (*Offer, error) {
	o, err := NewOfferOnBehalf(sellerID, d.Requirement, in, now)
	if err != nil {
		return nil, err
	}
	d.Offers = append(d.Offers, o)
	return &d.Offers[len(d.Offers)-1], nil
}

// ConfirmOffer lets the owner submit an admin-created offer to the buyer.
func (d *Deal) ConfirmOffer(sellerID, offerID string, now time.Time) error {
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if sellerID != o.SellerID {
		return forbiddenf("only the owner can confirm offer %s", o.ID)
	}
	if o.Status != OfferPendingSellerApproval {
		return transitionf("offer", o.ID, o.Status, "owner confirmation")
	}
	return o.transition(OfferPendingBuyer, now)
}

// AdminApproveOffer clears an offer through moderation and hands it to the
// buyer. If the requirement's validity window has already expired, approval
// requires an explicit override, which is recorded in the communication log.
func (d *Deal) AdminApproveOffer(adminID, offerID string, allowExpiredWindow bool, now time.Time) error {
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if o.Status != OfferPendingAdmin {
		return transitionf("offer", o.ID, o.Status, "admin approval")
	}
	if d.Requirement.Window.Expired(now) {
		if !allowExpiredWindow {
			return validationf("requirement window has expired; approval needs an explicit override")
		}
		o.appendLog(RoleAdmin, adminID, "approved past the requirement window", EventWindowOverride, now)
	}
	return o.transition(OfferPendingBuyer, now)
}

// AdminRejectOffer refuses an offer at moderation, logging the mandatory
// reason on the offer's timeline.
func (d *Deal) AdminRejectOffer(adminID, offerID, reason string, now time.Time) error {
	reason, err := trimmedReason(reason)
	if err != nil {
		return err
	}
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if o.Status != OfferPendingAdmin {
		return transitionf("offer", o.ID, o.Status, "admin rejection")
	}
	if err := o.transition(OfferRejected, now); err != nil {
		return err
	}
	o.appendLog(RoleAdmin, adminID, reason, EventAdminRejection, now)
	return nil
}

// BuyerApproveOffer is the buyer's acceptance. If the offered volume fits
// within the remaining total, a commitment is appended and completion is
// recomputed. If it over-subscribes, the approval is parked: the requirement
// enters the quantity-increase sub-protocol and the commitment is deferred
// until the admin rules on the new total.
func (d *Deal) BuyerApproveOffer(buyerID, offerID string, now time.Time) error {
	r := &d.Requirement
	if buyerID != r.BuyerID {
		return forbiddenf("only the requirement owner can approve offer %s", offerID)
	}
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if o.Status != OfferPendingBuyer {
		return transitionf("offer", o.ID, o.Status, "buyer approval")
	}
	if r.Status != ReqActive {
		return transitionf("requirement", r.ID, r.Status, "offer approval")
	}

	committed := d.TotalCommitted()
	if committed+o.Volume > r.TotalVolume {
		if err := r.transition(ReqPendingQuantityIncrease, now); err != nil {
			return err
		}
		r.PendingIncrease = &QuantityIncrease{
			NewTotal:          committed + o.Volume,
			TriggeringOfferID: o.ID,
			RequestedAt:       now,
		}
		return nil
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

// BuyerRejectOffer is the buyer's refusal, logged with a mandatory reason.
func (d *Deal) BuyerRejectOffer(buyerID, offerID, reason string, now time.Time) error {
	reason, err := trimmedReason(reason)
	if err != nil {
		return err
	}
	if buyerID != d.Requirement.BuyerID {
		return forbiddenf("only the requirement owner can reject offer %s", offerID)
	}
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if o.Status != OfferPendingBuyer {
		return transitionf("offer", o.ID, o.Status, "buyer rejection")
	}
	if err := d.guardIncreaseTrigger(o); err != nil {
		return err
	}
	if err := o.transition(OfferRejected, now); err != nil {
		return err
	}
	o.appendLog(RoleBuyer, buyerID, reason, EventBuyerRejection, now)
	return nil
}

// AskSeller records an admin question on the offer and parks it until the
// seller responds.
func (d *Deal) AskSeller(adminID, offerID, question string, now time.Time) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return validationf("a non-empty question is required")
	}
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if err := d.guardIncreaseTrigger(o); err != nil {
		return err
	}
	if err := o.transition(OfferPendingSellerAction, now); err != nil {
		return err
	}
	o.appendLog(RoleAdmin, adminID, question, EventAdminQuestion, now)
	return nil
}

// SellerReply handles the seller's response to an admin question: a plain
// reply keeps the status, while edit and delete requests move the offer into
// the corresponding pending state. Every branch appends a log entry.
func (d *Deal) SellerReply(sellerID, offerID string, action SellerAction, message string, now time.Time) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return validationf("a non-empty message is required")
	}
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if sellerID != o.SellerID {
		return forbiddenf("only the owner can reply on offer %s", o.ID)
	}
	if o.Status != OfferPendingSellerAction {
		return transitionf("offer", o.ID, o.Status, "seller reply")
	}

	switch action {
	case SellerActionReply:
		o.appendLog(RoleSeller, sellerID, message, EventSellerReply, now)
		o.UpdatedAt = now
		return nil
	case SellerActionRequestEdit:
		if err := o.transition(OfferPendingEdit, now); err != nil {
			return err
		}
		o.appendLog(RoleSeller, sellerID, message, EventEditRequest, now)
		return nil
	case SellerActionRequestDelete:
		if err := o.transition(OfferPendingDeletion, now); err != nil {
			return err
		}
		o.appendLog(RoleSeller, sellerID, message, EventDeleteRequest, now)
		return nil
	default:
		return validationf("unknown seller action %q", action)
	}
}

// SellerResubmit replaces the offer's content and sends it back through
// moderation. Resubmission is only legal while the offer is editable, and
// an edited offer never bypasses admin review.
func (d *Deal) SellerResubmit(sellerID, offerID string, in OfferInput, now time.Time) error {
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if sellerID != o.SellerID {
		return forbiddenf("only the owner can edit offer %s", o.ID)
	}
	if !o.editable() {
		return transitionf("offer", o.ID, o.Status, "content edit")
	}
	if err := d.guardIncreaseTrigger(o); err != nil {
		return err
	}
	if err := in.Validate(d.Requirement); err != nil {
		return err
	}

	o.Volume = in.Volume
	o.Frequency = in.Frequency
	o.VehicleType = in.VehicleType
	o.Terms = in.Terms
	o.Window = in.Window
	o.PhotoKeys = in.PhotoKeys
	o.PenaltyFeeAccepted = in.PenaltyFeeAccepted
	o.PenaltyFeePerKg = in.PenaltyFeePerKg
	o.PendingEdits = nil

	if o.Status == OfferPendingAdmin {
		o.UpdatedAt = now
		return nil
	}
	return o.transition(OfferPendingAdmin, now)
}

// AdminProposeOfferEdit records an admin edit that the seller must confirm.
func (d *Deal) AdminProposeOfferEdit(adminID, offerID string, edit OfferEdit, now time.Time) error {
	if err := edit.Validate(); err != nil {
		return err
	}
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if o.Status != OfferPendingBuyer {
		return transitionf("offer", o.ID, o.Status, "admin edit proposal")
	}
	if err := d.guardIncreaseTrigger(o); err != nil {
		return err
	}
	if err := o.transition(OfferWaitingOwnerEditApproval, now); err != nil {
		return err
	}
	edit.ProposedBy = adminID
	o.PendingEdits = &edit
	return nil
}

// DecideAdminOfferEdit is the seller ruling on an admin-proposed edit.
// Approval merges the pending snapshot, rejection discards it; both
// branches return the offer to the buyer's queue.
func (d *Deal) DecideAdminOfferEdit(sellerID, offerID string, approve bool, now time.Time) error {
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if sellerID != o.SellerID {
		return forbiddenf("only the owner can decide edits on offer %s", o.ID)
	}
	if o.Status != OfferWaitingOwnerEditApproval || o.PendingEdits == nil {
		return transitionf("offer", o.ID, o.Status, "edit decision")
	}
	if err := o.transition(OfferPendingBuyer, now); err != nil {
		return err
	}
	if approve {
		o.applyEdit(*o.PendingEdits)
	}
	o.PendingEdits = nil
	return nil
}

// DecideOfferDeletion is the admin ruling on a seller's delete request.
// Approval hides the offer; rejection returns it to the buyer's queue with
// the reason logged.
func (d *Deal) DecideOfferDeletion(adminID, offerID string, approve bool, reason string, now time.Time) error {
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if o.Status != OfferPendingDeletion {
		return transitionf("offer", o.ID, o.Status, "deletion decision")
	}
	if approve {
		return o.transition(OfferHiddenByAdmin, now)
	}
	reason, err = trimmedReason(reason)
	if err != nil {
		return err
	}
	if err := o.transition(OfferPendingBuyer, now); err != nil {
		return err
	}
	o.appendLog(RoleAdmin, adminID, reason, EventAdminFeedback, now)
	return nil
}

// HideOffer soft-deletes the offer; approved offers admit no other exit.
func (d *Deal) HideOffer(offerID string, now time.Time) error {
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	if o.Status == OfferHiddenByAdmin {
		return transitionf("offer", o.ID, o.Status, "hide")
	}
	if err := d.guardIncreaseTrigger(o); err != nil {
		return err
	}
	o.setStatus(OfferHiddenByAdmin, now)
	o.PendingEdits = nil
	return nil
}

// ForceOfferStatus is the break-glass moderation override for offers. The
// forced move is recorded on the offer's timeline.
func (d *Deal) ForceOfferStatus(adminID, offerID string, to OfferStatus, reason string, now time.Time) error {
	if !to.Valid() {
		return validationf("unknown offer status %q", to)
	}
	o, err := d.Offer(offerID)
	if err != nil {
		return err
	}
	from := o.Status
	o.setStatus(to, now)
	if to != OfferWaitingOwnerEditApproval {
		o.PendingEdits = nil
	}
	msg := "status forced from " + from.String() + " to " + to.String()
	if reason = strings.TrimSpace(reason); reason != "" {
		msg += ": " + reason
	}
	o.appendLog(RoleAdmin, adminID, msg, EventForcedStatus, now)
	return nil
}
