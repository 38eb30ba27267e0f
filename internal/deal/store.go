package deal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reciclo/broker/internal/db"
)

func notFoundOrQueryErr(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	}
	return fmt.Errorf("resolve %s failed: %w", entity, err)
}

// Store handles all database operations for deal aggregates. Loading an
// aggregate locks its requirement row, so every mutation of a requirement
// and its dependent offers and commitments is serialized on that row.
type Store struct{}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// InsertRequirement persists a freshly created requirement.
func (s *Store) InsertRequirement(ctx context.Context, q db.Querier, r Requirement) error {
	material, err := json.Marshal(r.Material)
	if err != nil {
		return fmt.Errorf("encode material: %w", err)
	}
	quality, err := json.Marshal(r.Quality)
	if err != nil {
		return fmt.Errorf("encode quality: %w", err)
	}
	logistics, err := json.Marshal(r.Logistics)
	if err != nil {
		return fmt.Errorf("encode logistics: %w", err)
	}
	formula, err := json.Marshal(r.PriceFormula)
	if err != nil {
		return fmt.Errorf("encode price formula: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO requirements
			(id, buyer_id, status, material, total_volume, unit, frequency,
			 quality, logistics, delivery_place, price_formula, payment_type,
			 payment_method, management_fee, window_start, window_end,
			 pending_since, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, r.ID, r.BuyerID, r.Status, material, r.TotalVolume, r.Unit, r.Frequency,
		quality, logistics, r.DeliveryPlace, formula, r.PaymentType,
		r.PaymentMethod, r.ManagementFeePerKg, r.Window.Start, r.Window.End,
		r.PendingSince, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert requirement failed: %w", err)
	}
	return nil
}

// Load fetches the full aggregate for a requirement, locking its row for
// the duration of the transaction.
func (s *Store) Load(ctx context.Context, q db.Querier, requirementID string) (*Deal, error) {
	return s.load(ctx, q, requirementID, true)
}

// View fetches the aggregate without locking, for read-only projections.
func (s *Store) View(ctx context.Context, q db.Querier, requirementID string) (*Deal, error) {
	return s.load(ctx, q, requirementID, false)
}

func (s *Store) load(ctx context.Context, q db.Querier, requirementID string, lock bool) (*Deal, error) {
	r, err := s.loadRequirement(ctx, q, requirementID, lock)
	if err != nil {
		return nil, err
	}

	d := &Deal{Requirement: *r}

	if d.Offers, err = s.loadOffers(ctx, q, requirementID); err != nil {
		return nil, err
	}
	if d.Commitments, err = s.loadCommitments(ctx, q, requirementID); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadByOffer resolves an offer to its parent requirement and loads that
// aggregate under the same lock.
func (s *Store) LoadByOffer(ctx context.Context, q db.Querier, offerID string) (*Deal, error) {
	var requirementID string
	err := q.QueryRow(ctx, `SELECT requirement_id FROM offers WHERE id = $1`, offerID).Scan(&requirementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: offer %s", ErrNotFound, offerID)
		}
		return nil, fmt.Errorf("resolve offer failed: %w", err)
	}
	return s.Load(ctx, q, requirementID)
}

// GetRequirement fetches a requirement without locking, for read-only views.
func (s *Store) GetRequirement(ctx context.Context, q db.Querier, requirementID string) (*Requirement, error) {
	return s.loadRequirement(ctx, q, requirementID, false)
}

func (s *Store) loadRequirement(ctx context.Context, q db.Querier, id string, lock bool) (*Requirement, error) {
	query := `
		SELECT id, buyer_id, status, material, total_volume, unit, frequency,
		       quality, logistics, delivery_place, price_formula, payment_type,
		       payment_method, management_fee, window_start, window_end,
		       pending_edits, pending_increase, rejection_reason, pending_since,
		       created_at, updated_at
		FROM requirements
		WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		r                                     Requirement
		material, quality, logistics, formula []byte
		pendingEdits, pendingIncrease         []byte
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.BuyerID, &r.Status, &material, &r.TotalVolume, &r.Unit, &r.Frequency,
		&quality, &logistics, &r.DeliveryPlace, &formula, &r.PaymentType,
		&r.PaymentMethod, &r.ManagementFeePerKg, &r.Window.Start, &r.Window.End,
		&pendingEdits, &pendingIncrease, &r.RejectionReason, &r.PendingSince,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: requirement %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load requirement failed: %w", err)
	}

	if err := json.Unmarshal(material, &r.Material); err != nil {
		return nil, fmt.Errorf("decode material: %w", err)
	}
	if err := json.Unmarshal(quality, &r.Quality); err != nil {
		return nil, fmt.Errorf("decode quality: %w", err)
	}
	if err := json.Unmarshal(logistics, &r.Logistics); err != nil {
		return nil, fmt.Errorf("decode logistics: %w", err)
	}
	if err := json.Unmarshal(formula, &r.PriceFormula); err != nil {
		return nil, fmt.Errorf("decode price formula: %w", err)
	}
	if len(pendingEdits) > 0 {
		r.PendingEdits = &RequirementEdit{}
		if err := json.Unmarshal(pendingEdits, r.PendingEdits); err != nil {
			return nil, fmt.Errorf("decode pending edits: %w", err)
		}
	}
	if len(pendingIncrease) > 0 {
		r.PendingIncrease = &QuantityIncrease{}
		if err := json.Unmarshal(pendingIncrease, r.PendingIncrease); err != nil {
			return nil, fmt.Errorf("decode pending increase: %w", err)
		}
	}
	return &r, nil
}

func (s *Store) loadOffers(ctx context.Context, q db.Querier, requirementID string) ([]Offer, error) {
	rows, err := q.Query(ctx, `
		SELECT id, seller_id, requirement_id, status, volume, unit, frequency,
		       vehicle_type, terms, window_start, window_end, photo_keys,
		       penalty_fee_accepted, penalty_fee, pending_edits, pending_since,
		       created_at, updated_at
		FROM offers
		WHERE requirement_id = $1
		ORDER BY created_at
	`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("load offers failed: %w", err)
	}
	defer rows.Close()

	var offers []Offer
	for rows.Next() {
		var (
			o                              Offer
			terms, photoKeys, pendingEdits []byte
		)
		if err := rows.Scan(
			&o.ID, &o.SellerID, &o.RequirementID, &o.Status, &o.Volume, &o.Unit, &o.Frequency,
			&o.VehicleType, &terms, &o.Window.Start, &o.Window.End, &photoKeys,
			&o.PenaltyFeeAccepted, &o.PenaltyFeePerKg, &pendingEdits, &o.PendingSince,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan offer failed: %w", err)
		}
		if err := json.Unmarshal(terms, &o.Terms); err != nil {
			return nil, fmt.Errorf("decode terms: %w", err)
		}
		if len(photoKeys) > 0 {
			if err := json.Unmarshal(photoKeys, &o.PhotoKeys); err != nil {
				return nil, fmt.Errorf("decode photo keys: %w", err)
			}
		}
		if len(pendingEdits) > 0 {
			o.PendingEdits = &OfferEdit{}
			if err := json.Unmarshal(pendingEdits, o.PendingEdits); err != nil {
				return nil, fmt.Errorf("decode pending edits: %w", err)
			}
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	for i := range offers {
		if offers[i].Log, err = s.loadLog(ctx, q, offers[i].ID); err != nil {
			return nil, err
		}
	}
	return offers, nil
}

func (s *Store) loadLog(ctx context.Context, q db.Querier, offerID string) ([]LogEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, author, author_id, message, event, at
		FROM communication_log
		WHERE offer_id = $1
		ORDER BY at, id
	`, offerID)
	if err != nil {
		return nil, fmt.Errorf("load communication log failed: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Author, &e.AuthorID, &e.Message, &e.Event, &e.At); err != nil {
			return nil, fmt.Errorf("scan log entry failed: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return entries, nil
}

func (s *Store) loadCommitments(ctx context.Context, q db.Querier, requirementID string) ([]Commitment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, offer_id, requirement_id, volume, unit, created_at
		FROM commitments
		WHERE requirement_id = $1
		ORDER BY created_at
	`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("load commitments failed: %w", err)
	}
	defer rows.Close()

	var commitments []Commitment
	for rows.Next() {
		var c Commitment
		if err := rows.Scan(&c.ID, &c.OfferID, &c.RequirementID, &c.Volume, &c.Unit, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commitment failed: %w", err)
		}
		commitments = append(commitments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return commitments, nil
}

// Save persists the aggregate after a command. The requirement row is
// updated in place; offers are upserted; commitments and log entries are
// append-only, so existing ids are left untouched.
func (s *Store) Save(ctx context.Context, q db.Querier, d *Deal) error {
	if err := s.updateRequirement(ctx, q, d.Requirement); err != nil {
		return err
	}
	for i := range d.Offers {
		if err := s.upsertOffer(ctx, q, d.Offers[i]); err != nil {
			return err
		}
		for _, e := range d.Offers[i].Log {
			if err := s.insertLogEntry(ctx, q, d.Offers[i].ID, e); err != nil {
				return err
			}
		}
	}
	for _, c := range d.Commitments {
		if err := s.insertCommitment(ctx, q, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) updateRequirement(ctx context.Context, q db.Querier, r Requirement) error {
	quality, err := json.Marshal(r.Quality)
	if err != nil {
		return fmt.Errorf("encode quality: %w", err)
	}
	logistics, err := json.Marshal(r.Logistics)
	if err != nil {
		return fmt.Errorf("encode logistics: %w", err)
	}
	formula, err := json.Marshal(r.PriceFormula)
	if err != nil {
		return fmt.Errorf("encode price formula: %w", err)
	}
	var pendingEdits, pendingIncrease []byte
	if r.PendingEdits != nil {
		if pendingEdits, err = json.Marshal(r.PendingEdits); err != nil {
			return fmt.Errorf("encode pending edits: %w", err)
		}
	}
	if r.PendingIncrease != nil {
		if pendingIncrease, err = json.Marshal(r.PendingIncrease); err != nil {
			return fmt.Errorf("encode pending increase: %w", err)
		}
	}

	_, err = q.Exec(ctx, `
		UPDATE requirements
		SET status = $2, total_volume = $3, frequency = $4, quality = $5,
		    logistics = $6, delivery_place = $7, price_formula = $8,
		    payment_type = $9, payment_method = $10, window_end = $11,
		    pending_edits = $12, pending_increase = $13, rejection_reason = $14,
		    pending_since = $15, updated_at = $16
		WHERE id = $1
	`, r.ID, r.Status, r.TotalVolume, r.Frequency, quality,
		logistics, r.DeliveryPlace, formula,
		r.PaymentType, r.PaymentMethod, r.Window.End,
		pendingEdits, pendingIncrease, r.RejectionReason,
		r.PendingSince, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update requirement failed: %w", err)
	}
	return nil
}

func (s *Store) upsertOffer(ctx context.Context, q db.Querier, o Offer) error {
	terms, err := json.Marshal(o.Terms)
	if err != nil {
		return fmt.Errorf("encode terms: %w", err)
	}
	photoKeys, err := json.Marshal(o.PhotoKeys)
	if err != nil {
		return fmt.Errorf("encode photo keys: %w", err)
	}
	var pendingEdits []byte
	if o.PendingEdits != nil {
		if pendingEdits, err = json.Marshal(o.PendingEdits); err != nil {
			return fmt.Errorf("encode pending edits: %w", err)
		}
	}

	_, err = q.Exec(ctx, `
		INSERT INTO offers
			(id, seller_id, requirement_id, status, volume, unit, frequency,
			 vehicle_type, terms, window_start, window_end, photo_keys,
			 penalty_fee_accepted, penalty_fee, pending_edits, pending_since,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, volume = EXCLUDED.volume,
		    frequency = EXCLUDED.frequency, vehicle_type = EXCLUDED.vehicle_type,
		    terms = EXCLUDED.terms, window_start = EXCLUDED.window_start,
		    window_end = EXCLUDED.window_end, photo_keys = EXCLUDED.photo_keys,
		    penalty_fee_accepted = EXCLUDED.penalty_fee_accepted,
		    penalty_fee = EXCLUDED.penalty_fee,
		    pending_edits = EXCLUDED.pending_edits,
		    pending_since = EXCLUDED.pending_since,
		    updated_at = EXCLUDED.updated_at
	`, o.ID, o.SellerID, o.RequirementID, o.Status, o.Volume, o.Unit, o.Frequency,
		o.VehicleType, terms, o.Window.Start, o.Window.End, photoKeys,
		o.PenaltyFeeAccepted, o.PenaltyFeePerKg, pendingEdits, o.PendingSince,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert offer failed: %w", err)
	}
	return nil
}

func (s *Store) insertLogEntry(ctx context.Context, q db.Querier, offerID string, e LogEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO communication_log (id, offer_id, author, author_id, message, event, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, offerID, e.Author, e.AuthorID, e.Message, e.Event, e.At)
	if err != nil {
		return fmt.Errorf("insert log entry failed: %w", err)
	}
	return nil
}

func (s *Store) insertCommitment(ctx context.Context, q db.Querier, c Commitment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO commitments (id, offer_id, requirement_id, volume, unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.OfferID, c.RequirementID, c.Volume, c.Unit, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert commitment failed: %w", err)
	}
	return nil
}

// RequirementSummary is a read-only listing projection.
type RequirementSummary struct {
	ID           string            `json:"id"`
	BuyerID      string            `json:"buyerId"`
	Status       RequirementStatus `json:"status"`
	Category     string            `json:"category"`
	TotalVolume  float64           `json:"totalVolume"`
	Unit         string            `json:"unit"`
	Committed    float64           `json:"committed"`
	WindowEnd    time.Time         `json:"windowEnd"`
	PendingSince *time.Time        `json:"pendingSince,omitempty"`
}

// ListRequirements returns listing projections, optionally filtered by
// status. The committed column is derived from the ledger, never stored.
func (s *Store) ListRequirements(ctx context.Context, q db.Querier, status RequirementStatus) ([]RequirementSummary, error) {
	query := `
		SELECT r.id, r.buyer_id, r.status, r.material->>'category',
		       r.total_volume, r.unit,
		       COALESCE((SELECT SUM(c.volume) FROM commitments c WHERE c.requirement_id = r.id), 0),
		       r.window_end, r.pending_since
		FROM requirements r`
	args := []any{}
	if status != "" {
		query += ` WHERE r.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY r.created_at DESC`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requirements failed: %w", err)
	}
	defer rows.Close()

	var out []RequirementSummary
	for rows.Next() {
		var r RequirementSummary
		if err := rows.Scan(&r.ID, &r.BuyerID, &r.Status, &r.Category,
			&r.TotalVolume, &r.Unit, &r.Committed, &r.WindowEnd, &r.PendingSince); err != nil {
			return nil, fmt.Errorf("scan requirement summary failed: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}

// StaleReview is a record stuck in a waiting status.
type StaleReview struct {
	Entity       string    `json:"entity"`
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	PendingSince time.Time `json:"pendingSince"`
}

// ListStale returns requirements and offers that have been waiting on a
// decision since before the cutoff, oldest first. There is no automatic
// timeout; surfacing them is the operational answer to reviews that would
// otherwise hang forever.
func (s *Store) ListStale(ctx context.Context, q db.Querier, cutoff time.Time) ([]StaleReview, error) {
	rows, err := q.Query(ctx, `
		SELECT 'requirement', id, status, pending_since
		FROM requirements
		WHERE pending_since IS NOT NULL AND pending_since < $1
		UNION ALL
		SELECT 'offer', id, status, pending_since
		FROM offers
		WHERE pending_since IS NOT NULL AND pending_since < $1
		ORDER BY 4
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale reviews failed: %w", err)
	}
	defer rows.Close()

	var out []StaleReview
	for rows.Next() {
		var r StaleReview
		if err := rows.Scan(&r.Entity, &r.ID, &r.Status, &r.PendingSince); err != nil {
			return nil, fmt.Errorf("scan stale review failed: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}
