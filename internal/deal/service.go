package deal

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reciclo/broker/internal/db"
)

// Actor is the authenticated party issuing a command. Authentication itself
// happens upstream; the core only checks ownership and role.
type Actor struct {
	ID   string
	Role Role
}

// Service executes deal commands transactionally. Every command runs as one
// transaction: load the aggregate under its row lock, apply the pure
// command, persist — so guards are checked and applied atomically and two
// concurrent approvals against the same requirement serialize instead of
// both slipping past the volume check.
type Service struct {
	db    *db.DB
	store *Store
	now   func() time.Time
}

// NewService creates a new deal Service.
func NewService(database *db.DB) *Service {
	return &Service{db: database, store: NewStore(), now: time.Now}
}

// CreateRequirement creates a buyer-authored requirement awaiting
// moderation.
func (s *Service) CreateRequirement(ctx context.Context, actor Actor, in RequirementInput) (*Requirement, error) {
	if actor.Role != RoleBuyer {
		return nil, forbiddenf("only buyers create requirements")
	}
	r, err := NewRequirement(actor.ID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertRequirement(ctx, s.db, r); err != nil {
		return nil, err
	}
	slog.Info("requirement created", "requirement_id", r.ID, "buyer_id", r.BuyerID)
	return &r, nil
}

// ViewDeal returns a read-only snapshot of the aggregate.
func (s *Service) ViewDeal(ctx context.Context, requirementID string) (*Deal, error) {
	return s.store.View(ctx, s.db, requirementID)
}

// ViewOffer returns a read-only snapshot of one offer.
func (s *Service) ViewOffer(ctx context.Context, offerID string) (*Offer, error) {
	var requirementID string
	err := s.db.QueryRow(ctx, `SELECT requirement_id FROM offers WHERE id = $1`, offerID).Scan(&requirementID)
	if err != nil {
		return nil, notFoundOrQueryErr(err, "offer", offerID)
	}
	d, err := s.store.View(ctx, s.db, requirementID)
	if err != nil {
		return nil, err
	}
	return d.Offer(offerID)
}

// ListRequirements returns listing projections, optionally by status.
func (s *Service) ListRequirements(ctx context.Context, status RequirementStatus) ([]RequirementSummary, error) {
	if status != "" && !status.Valid() {
		return nil, validationf("unknown requirement status %q", status)
	}
	return s.store.ListRequirements(ctx, s.db, status)
}

// mutateDeal runs fn against the locked aggregate of a requirement and
// persists the result if it succeeds.
func (s *Service) mutateDeal(ctx context.Context, requirementID string, fn func(d *Deal, now time.Time) error) (*Deal, error) {
	var out *Deal
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		d, err := s.store.Load(ctx, tx, requirementID)
		if err != nil {
			return err
		}
		if err := fn(d, s.now()); err != nil {
			return err
		}
		if err := s.store.Save(ctx, tx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutateDealByOffer is mutateDeal addressed through an offer id.
func (s *Service) mutateDealByOffer(ctx context.Context, offerID string, fn func(d *Deal, now time.Time) error) (*Deal, error) {
	var out *Deal
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		d, err := s.store.LoadByOffer(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if err := fn(d, s.now()); err != nil {
			return err
		}
		if err := s.store.Save(ctx, tx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmRequirement activates an admin-created requirement at the owner's
// confirmation.
func (s *Service) ConfirmRequirement(ctx context.Context, actor Actor, requirementID string) (*Deal, error) {
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.ConfirmRequirement(actor.ID, now)
	})
}

// CancelRequirement withdraws a requirement at the owner's request.
func (s *Service) CancelRequirement(ctx context.Context, actor Actor, requirementID string) (*Deal, error) {
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.CancelRequirement(actor.ID, now)
	})
}

// RequestRequirementEdit records an owner edit awaiting admin review.
func (s *Service) RequestRequirementEdit(ctx context.Context, actor Actor, requirementID string, edit RequirementEdit) (*Deal, error) {
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.RequestRequirementEdit(actor.ID, edit, now)
	})
}

// DecideAdminRequirementEdit applies or discards an admin-proposed edit at
// the owner's decision.
func (s *Service) DecideAdminRequirementEdit(ctx context.Context, actor Actor, requirementID string, approve bool) (*Deal, error) {
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.DecideAdminRequirementEdit(actor.ID, approve, now)
	})
}

// RequestRequirementDeletion records the owner's request to retire the
// record.
func (s *Service) RequestRequirementDeletion(ctx context.Context, actor Actor, requirementID string) (*Deal, error) {
	return s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		return d.RequestRequirementDeletion(actor.ID, now)
	})
}

// SubmitOffer creates a seller offer against an active requirement.
func (s *Service) SubmitOffer(ctx context.Context, actor Actor, requirementID string, in OfferInput) (*Offer, error) {
	if actor.Role != RoleSeller {
		return nil, forbiddenf("only sellers submit offers")
	}
	var created *Offer
	_, err := s.mutateDeal(ctx, requirementID, func(d *Deal, now time.Time) error {
		o, err := d.AddOffer(actor.ID, in, now)
		if err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("offer submitted", "offer_id", created.ID, "requirement_id", requirementID, "seller_id", actor.ID)
	return created, nil
}

// ConfirmOffer submits an admin-created offer at the owner's confirmation.
func (s *Service) ConfirmOffer(ctx context.Context, actor Actor, offerID string) (*Deal, error) {
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.ConfirmOffer(actor.ID, offerID, now)
	})
}

// ApproveOffer is the buyer's acceptance of an offer.
func (s *Service) ApproveOffer(ctx context.Context, actor Actor, offerID string) (*Deal, error) {
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.BuyerApproveOffer(actor.ID, offerID, now)
	})
}

// RejectOffer is the buyer's refusal of an offer.
func (s *Service) RejectOffer(ctx context.Context, actor Actor, offerID, reason string) (*Deal, error) {
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.BuyerRejectOffer(actor.ID, offerID, reason, now)
	})
}

// ReplyToAdmin handles the seller's response to an admin question.
func (s *Service) ReplyToAdmin(ctx context.Context, actor Actor, offerID string, action SellerAction, message string) (*Deal, error) {
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.SellerReply(actor.ID, offerID, action, message, now)
	})
}

// ResubmitOffer replaces the offer's content and sends it back through
// moderation.
func (s *Service) ResubmitOffer(ctx context.Context, actor Actor, offerID string, in OfferInput) (*Deal, error) {
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.SellerResubmit(actor.ID, offerID, in, now)
	})
}

// DecideAdminOfferEdit applies or discards an admin-proposed offer edit at
// the seller's decision.
func (s *Service) DecideAdminOfferEdit(ctx context.Context, actor Actor, offerID string, approve bool) (*Deal, error) {
	return s.mutateDealByOffer(ctx, offerID, func(d *Deal, now time.Time) error {
		return d.DecideAdminOfferEdit(actor.ID, offerID, approve, now)
	})
}
