package deal

// RequirementStatus is the closed set of lifecycle states for a buyer's
// requirement. A requirement holds exactly one status at a time and only
// moves along the edges in requirementTransitions, except through the
// admin force-status override.
type RequirementStatus string

const (
	// ReqPendingAdmin: created by the buyer, awaiting first moderation.
	ReqPendingAdmin RequirementStatus = "pending_admin"
	// ReqPendingBuyerApproval: created by an admin on the buyer's behalf,
	// awaiting the owner's confirmation.
	ReqPendingBuyerApproval RequirementStatus = "pending_buyer_approval"
	// ReqActive: visible to sellers and open for offers.
	ReqActive RequirementStatus = "active"
	// ReqPendingEdit: the owner proposed an edit awaiting admin review.
	ReqPendingEdit RequirementStatus = "pending_edit"
	// ReqWaitingOwnerEditApproval: an admin edited the record on the owner's
	// behalf; the owner must confirm before the edit takes effect.
	ReqWaitingOwnerEditApproval RequirementStatus = "waiting_owner_edit_approval"
	// ReqPendingDeletion: the owner asked for the record to be retired.
	ReqPendingDeletion RequirementStatus = "pending_deletion"
	// ReqPendingQuantityIncrease: an over-subscribing offer approval is
	// parked until the admin rules on raising the total volume.
	ReqPendingQuantityIncrease RequirementStatus = "pending_quantity_increase"
	// ReqCompleted: the commitment ledger covers the full volume.
	ReqCompleted RequirementStatus = "completed"
	// ReqCancelled: withdrawn by the owner.
	ReqCancelled RequirementStatus = "cancelled"
	// ReqRejected: refused at moderation, with a mandatory reason.
	ReqRejected RequirementStatus = "rejected"
	// ReqHiddenByAdmin: terminal soft delete. Records are never physically
	// removed; this status replaces deletion.
	ReqHiddenByAdmin RequirementStatus = "hidden_by_admin"
)

func (s RequirementStatus) String() string { return string(s) }

// Terminal reports whether no normal transition leaves this status.
// Only the admin force-status override can revive a terminal record.
func (s RequirementStatus) Terminal() bool {
	switch s {
	case ReqCompleted, ReqCancelled, ReqRejected, ReqHiddenByAdmin:
		return true
	}
	return false
}

// requirementTransitions is the explicit edge set of the requirement state
// machine. Any transition not listed here is rejected.
var requirementTransitions = map[RequirementStatus][]RequirementStatus{
	ReqPendingAdmin:         {ReqActive, ReqRejected, ReqHiddenByAdmin},
	ReqPendingBuyerApproval: {ReqActive, ReqCancelled, ReqHiddenByAdmin},
	ReqActive: {
		ReqPendingEdit,
		ReqWaitingOwnerEditApproval,
		ReqPendingDeletion,
		ReqPendingQuantityIncrease,
		ReqCompleted,
		ReqCancelled,
		ReqHiddenByAdmin,
	},
	ReqPendingEdit:              {ReqActive, ReqHiddenByAdmin},
	ReqWaitingOwnerEditApproval: {ReqActive, ReqHiddenByAdmin},
	ReqPendingDeletion:          {ReqActive, ReqHiddenByAdmin},
	ReqPendingQuantityIncrease:  {ReqActive, ReqCompleted, ReqHiddenByAdmin},
	ReqCompleted:                {ReqHiddenByAdmin},
	ReqCancelled:                {ReqHiddenByAdmin},
	ReqRejected:                 {ReqHiddenByAdmin},
	ReqHiddenByAdmin:            {},
}

// CanTransition reports whether the requirement state machine permits
// moving from one status to another.
func (s RequirementStatus) CanTransition(to RequirementStatus) bool {
	for _, next := range requirementTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a member of the closed status set.
func (s RequirementStatus) Valid() bool {
	_, ok := requirementTransitions[s]
	return ok
}

// OfferStatus is the closed set of lifecycle states for a seller's offer.
type OfferStatus string

const (
	// OfferPendingAdmin: submitted by the seller, awaiting first moderation.
	// Edited offers return here: a resubmission never bypasses review.
	OfferPendingAdmin OfferStatus = "pending_admin"
	// OfferPendingSellerApproval: created by an admin on the seller's
	// behalf, awaiting the owner's confirmation.
	OfferPendingSellerApproval OfferStatus = "pending_seller_approval"
	// OfferPendingBuyer: cleared moderation, awaiting the buyer's decision.
	OfferPendingBuyer OfferStatus = "pending_buyer"
	// OfferApproved: accepted by the buyer; a commitment has been appended.
	OfferApproved OfferStatus = "approved"
	// OfferRejected: refused by admin or buyer, with a logged reason.
	OfferRejected OfferStatus = "rejected"
	// OfferPendingEdit: the seller asked to amend the offer.
	OfferPendingEdit OfferStatus = "pending_edit"
	// OfferPendingDeletion: the seller asked to withdraw the offer.
	OfferPendingDeletion OfferStatus = "pending_deletion"
	// OfferPendingSellerAction: the admin asked the seller a question; the
	// offer waits for the seller's reply.
	OfferPendingSellerAction OfferStatus = "pending_seller_action"
	// OfferWaitingOwnerEditApproval: an admin edited the offer on the
	// seller's behalf; the seller must confirm or discard the edit.
	OfferWaitingOwnerEditApproval OfferStatus = "waiting_owner_edit_approval"
	// OfferHiddenByAdmin: terminal soft delete.
	OfferHiddenByAdmin OfferStatus = "hidden_by_admin"
)

func (s OfferStatus) String() string { return string(s) }

// Terminal reports whether no normal transition leaves this status.
func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferApproved, OfferRejected, OfferHiddenByAdmin:
		return true
	}
	return false
}

// offerTransitions is the explicit edge set of the offer state machine.
var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferPendingAdmin: {
		OfferPendingBuyer,
		OfferRejected,
		OfferPendingSellerAction,
		OfferHiddenByAdmin,
	},
	OfferPendingSellerApproval: {OfferPendingBuyer, OfferHiddenByAdmin},
	OfferPendingBuyer: {
		OfferApproved,
		OfferRejected,
		OfferPendingAdmin, // seller edit forces full re-moderation
		OfferPendingSellerAction,
		OfferWaitingOwnerEditApproval,
		OfferHiddenByAdmin,
	},
	OfferPendingSellerAction: {
		OfferPendingAdmin,
		OfferPendingBuyer,
		OfferPendingEdit,
		OfferPendingDeletion,
		OfferHiddenByAdmin,
	},
	OfferPendingEdit:     {OfferPendingAdmin, OfferHiddenByAdmin},
	OfferPendingDeletion: {OfferPendingBuyer, OfferHiddenByAdmin},
	// Both edit-review branches land on pending_buyer: an admin edit review
	// only ever follows an already-submitted offer.
	OfferWaitingOwnerEditApproval: {OfferPendingBuyer, OfferHiddenByAdmin},
	OfferApproved:                 {OfferHiddenByAdmin},
	OfferRejected:                 {OfferHiddenByAdmin},
	OfferHiddenByAdmin:            {},
}

// CanTransition reports whether the offer state machine permits moving from
// one status to another.
func (s OfferStatus) CanTransition(to OfferStatus) bool {
	for _, next := range offerTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a member of the closed status set.
func (s OfferStatus) Valid() bool {
	_, ok := offerTransitions[s]
	return ok
}
