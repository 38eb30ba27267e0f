// Package deal implements the negotiation and moderation core: the
// requirement and offer state machines, the per-term negotiation model, the
// price formula ledger, and the append-only commitment ledger.
//
// A Deal is the aggregate: one requirement plus all offers and commitments
// referencing it. Commands are pure in-memory mutations that validate every
// guard before touching state; the store layer loads a Deal under a row
// lock, applies one command, and persists the result in a single
// transaction, so aggregate mutations are serialized.
package deal

import (
	"fmt"
	"time"

	"github.com/reciclo/broker/internal/ident"
)

// Deal is the requirement aggregate.
type Deal struct {
	Requirement Requirement
	Offers      []Offer
	Commitments []Commitment
}

// Offer returns the offer with the given id.
func (d *Deal) Offer(offerID string) (*Offer, error) {
	for i := range d.Offers {
		if d.Offers[i].ID == offerID {
			return &d.Offers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: offer %s", ErrNotFound, offerID)
}

// TotalCommitted sums the aggregate's commitment ledger.
func (d *Deal) TotalCommitted() float64 {
	return TotalCommitted(d.Commitments)
}

// Fulfilled reports whether the ledger covers the requirement's volume.
func (d *Deal) Fulfilled() bool {
	return Fulfilled(d.Requirement.TotalVolume, d.Commitments)
}

// increaseTrigger reports whether the offer is the trigger of an open
// quantity-increase decision. The trigger must stay in the buyer's queue
// until the admin rules; moving it would leave the pending decision without
// a subject.
func (d *Deal) increaseTrigger(offerID string) bool {
	inc := d.Requirement.PendingIncrease
	return inc != nil && inc.TriggeringOfferID == offerID
}

func (d *Deal) guardIncreaseTrigger(o *Offer) error {
	if d.increaseTrigger(o.ID) {
		return consistencyf("offer %s is locked by the pending quantity-increase decision on requirement %s",
			o.ID, d.Requirement.ID)
	}
	return nil
}

// appendCommitment writes the immutable ledger fact for an approved offer.
// It refuses any append that would push the ledger past the requirement's
// total volume; quantity increases raise the total before appending.
func (d *Deal) appendCommitment(o *Offer, now time.Time) error {
	if err := ident.Validate(o.RequirementID, ident.Module, ident.KindRequirement); err != nil {
		return referentialf("bad requirement reference on offer %s: %v", o.ID, err)
	}
	if o.RequirementID != d.Requirement.ID {
		return referentialf("offer %s references requirement %s, not %s", o.ID, o.RequirementID, d.Requirement.ID)
	}
	for _, c := range d.Commitments {
		if c.OfferID == o.ID {
			return consistencyf("offer %s already has a commitment", o.ID)
		}
	}
	if d.TotalCommitted()+o.Volume > d.Requirement.TotalVolume {
		return consistencyf("commitment of %.3f %s would exceed the requirement total of %.3f",
			o.Volume, o.Unit, d.Requirement.TotalVolume)
	}

	d.Commitments = append(d.Commitments, Commitment{
		ID:            ident.New(ident.KindCommitment),
		OfferID:       o.ID,
		RequirementID: d.Requirement.ID,
		Volume:        o.Volume,
		Unit:          o.Unit,
		CreatedAt:     now,
	})
	return nil
}
