package deal

import "time"

// Commitment is an immutable fact: volume secured against a requirement by
// an approved offer. Commitments are append-only; the sum over a
// requirement's commitments is the sole source of truth for "volume
// secured", and status fields are only views derivable from it.
type Commitment struct {
	ID            string    `json:"id"`
	OfferID       string    `json:"offerId"`
	RequirementID string    `json:"requirementId"`
	Volume        float64   `json:"volume"`
	Unit          string    `json:"unit"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TotalCommitted sums the committed volume of a requirement's ledger.
func TotalCommitted(commitments []Commitment) float64 {
	var total float64
	for _, c := range commitments {
		total += c.Volume
	}
	return total
}

// Fulfilled reports whether the ledger covers the requirement's total.
func Fulfilled(totalVolume float64, commitments []Commitment) bool {
	return TotalCommitted(commitments) >= totalVolume
}
