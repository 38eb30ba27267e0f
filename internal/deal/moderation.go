package deal

import (
	"context"
	"log/slog"
	"time"
)

// The moderation gateway: the admin-only operation set that activates and
// refuses records, forces statuses, creates records on behalf of users, and
// arbitrates edits and quantity increases. Every operation here requires an
// admin actor; ownership rules do not apply to admins, status guards still
// do (except for the force-status overrides, which exist to bypass them).

func requireAdmin(actor Actor) error {
	if actor.Role != RoleAdmin {
		return forbiddenf("moderation requires an admin actor")
	}
	return nil
}

// ApproveRequirement activates a requirement at moderation.
func (s *Service) ApproveRequirement(ctx context.Context, actor Actor, requirementID string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	d, err := s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.AdminApproveRequirement(now)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("requirement approved", "requirement_id", requirementID, "admin_id", actor.ID)
	return d, nil
}

// RejectRequirement refuses a requirement at moderation with a mandatory
// reason.
func (s *Service) RejectRequirement(ctx context.Context, actor Actor, requirementID, reason string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.AdminRejectRequirement(reason, now)
	})
}

// CreateRequirementOnBehalf creates a requirement owned by the given buyer,
// landing in the owner-confirmation state.
func (s *Service) CreateRequirementOnBehalf(ctx context.Context, actor Actor, buyerID string, in RequirementInput) (*Requirement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	r, err := NewRequirementOnBehalf(buyerID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertRequirement(ctx, s.db, r); err != nil {
		return nil, err
	}
	slog.Info("requirement created on behalf", "requirement_id", r.ID, "buyer_id", buyerID, "admin_id", actor.ID)
	return &r, nil
}

// ProposeRequirementEdit records an admin edit that the owner must confirm.
func (s *Service) ProposeRequirementEdit(ctx context.Context, actor Actor, requirementID string, edit RequirementEdit) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.AdminProposeRequirementEdit(actor.ID, edit, now)
	})
}

// DecideRequirementEdit rules on an owner-initiated edit.
func (s *Service) DecideRequirementEdit(ctx context.Context, actor Actor, requirementID string, approve bool) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.DecideOwnerRequirementEdit(approve, now)
	})
}

// DecideRequirementDeletion rules on an owner deletion request.
func (s *Service) DecideRequirementDeletion(ctx context.Context, actor Actor, requirementID string, approve bool) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.DecideRequirementDeletion(approve, now)
	})
}

// DecideQuantityIncrease resolves a pending quantity-increase: approval
// raises the total and lands the deferred commitment, rejection reverts the
// requirement and refuses the triggering offer with the reason.
func (s *Service) DecideQuantityIncrease(ctx context.Context, actor Actor, requirementID string, approve bool, reason string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	d, err := s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		if approve {
			return d.ApproveQuantityIncrease(now)
		}
		return d.RejectQuantityIncrease(actor.ID, reason, now)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("quantity increase decided",
		"requirement_id", requirementID, "approved", approve, "admin_id", actor.ID)
	return d, nil
}

// ForceRequirementStatus is the break-glass status override for
// requirements.
func (s *Service) ForceRequirementStatus(ctx context.Context, actor Actor, requirementID string, to RequirementStatus) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	d, err := s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.ForceRequirementStatus(to, now)
	})
	if err != nil {
		return nil, err
	}
	slog.Warn("requirement status forced", "requirement_id", requirementID, "to", to, "admin_id", actor.ID)
	return d, nil
}

// HideRequirement soft-deletes a requirement.
func (s *Service) HideRequirement(ctx context.Context, actor Actor, requirementID string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.HideRequirement(now)
	})
}

// CreateOfferOnBehalf creates an offer owned by the given seller, landing in
// the owner-confirmation state.
func (s *Service) CreateOfferOnBehalf(ctx context.Context, actor Actor, sellerID, requirementID string, in OfferInput) (*Offer, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var created *Offer
	_, err := s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		o, err := d.AddOfferOnBehalf(sellerID, in, now)
		if err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("offer created on behalf", "offer_id", created.ID, "seller_id", sellerID, "admin_id", actor.ID)
	return created, nil
}

// ApproveOfferModeration clears an offer through moderation; the override
// flag permits approval past an expired requirement window.
func (s *Service) ApproveOfferModeration(ctx context.Context, actor Actor, offerID string, allowExpiredWindow bool) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.AdminApproveOffer(actor.ID, offerID, allowExpiredWindow, now)
	})
}

// RejectOfferModeration refuses an offer at moderation with a mandatory
// reason.
func (s *Service) RejectOfferModeration(ctx context.Context, actor Actor, offerID, reason string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.AdminRejectOffer(actor.ID, offerID, reason, now)
	})
}

// AskSeller records an admin question and parks the offer on the seller.
func (s *Service) AskSeller(ctx context.Context, actor Actor, offerID, question string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.AskSeller(actor.ID, offerID, question, now)
	})
}

// ProposeOfferEdit records an admin edit that the seller must confirm.
func (s *Service) ProposeOfferEdit(ctx context.Context, actor Actor, offerID string, edit OfferEdit) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.AdminProposeOfferEdit(actor.ID, offerID, edit, now)
	})
}

// DecideOfferDeletion rules on a seller's delete request.
func (s *Service) DecideOfferDeletion(ctx context.Context, actor Actor, offerID string, approve bool, reason string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.DecideOfferDeletion(actor.ID, offerID, approve, reason, now)
	})
}

// ForceOfferStatus is the break-glass status override for offers.
func (s *Service) ForceOfferStatus(ctx context.Context, actor Actor, offerID string, to OfferStatus, reason string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	d, err := s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.ForceOfferStatus(actor.ID, offerID, to, reason, now)
	})
	if err != nil {
		return nil, err
	}
	slog.Warn("offer status forced", "offer_id", offerID, "to", to, "admin_id", actor.ID)
	return d, nil
}

// HideOffer soft-deletes an offer.
func (s *Service) HideOffer(ctx context.Context, actor Actor, offerID string) (*Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.HideOffer(offerID, now)
	})
}

// ListStaleReviews surfaces records stuck in waiting statuses since before
// the cutoff.
func (s *Service) ListStaleReviews(ctx context.Context, actor Actor, cutoff time.Time) ([]StaleReview, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListStale(ctx, s.db, cutoff)
}
