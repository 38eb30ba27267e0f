package deal

import "strings"

// Term is one negotiable clause of an offer, evaluated against the
// requirement's declared terms: either accepted as-is, or declined with a
// mandatory counter-proposal.
type Term struct {
	Accepted        bool   `json:"accepted"`
	CounterProposal string `json:"counterProposal,omitempty"`
}

// Validate enforces the accept/counter pairing: a declined term must carry
// counter-proposal text, an accepted one must not.
func (t Term) Validate(clause string) error {
	if t.Accepted {
		if strings.TrimSpace(t.CounterProposal) != "" {
			return validationf("%s term is accepted but carries a counter-proposal", clause)
		}
		return nil
	}
	if strings.TrimSpace(t.CounterProposal) == "" {
		return validationf("%s term is declined without a counter-proposal", clause)
	}
	return nil
}

// PriceTerm is the price-formula clause of an offer. Unlike the free-text
// terms, a declined price carries a structured counter-formula.
type PriceTerm struct {
	Accepted bool            `json:"accepted"`
	Counter  *CounterFormula `json:"counter,omitempty"`
}

// Validate enforces the accept/counter pairing for the price clause.
func (t PriceTerm) Validate() error {
	if t.Accepted {
		if t.Counter != nil {
			return validationf("price term is accepted but carries a counter-formula")
		}
		return nil
	}
	if t.Counter == nil || len(t.Counter.Components) == 0 {
		return validationf("price term is declined without a counter-formula")
	}
	return nil
}

// OfferTerms groups the negotiable clauses of an offer.
type OfferTerms struct {
	Quality       Term      `json:"quality"`
	Logistics     Term      `json:"logistics"`
	DeliveryPlace Term      `json:"deliveryPlace"`
	Price         PriceTerm `json:"price"`
	PaymentType   Term      `json:"paymentType"`
	PaymentMethod Term      `json:"paymentMethod"`
}

// Validate checks every clause of the term set.
func (ot OfferTerms) Validate() error {
	if err := ot.Quality.Validate("quality"); err != nil {
		return err
	}
	if err := ot.Logistics.Validate("logistics"); err != nil {
		return err
	}
	if err := ot.DeliveryPlace.Validate("delivery place"); err != nil {
		return err
	}
	if err := ot.Price.Validate(); err != nil {
		return err
	}
	if err := ot.PaymentType.Validate("payment type"); err != nil {
		return err
	}
	return ot.PaymentMethod.Validate("payment method")
}

// FullyAccepted reports whether the seller accepted every clause as-is.
func (ot OfferTerms) FullyAccepted() bool {
	return ot.Quality.Accepted &&
		ot.Logistics.Accepted &&
		ot.DeliveryPlace.Accepted &&
		ot.Price.Accepted &&
		ot.PaymentType.Accepted &&
		ot.PaymentMethod.Accepted
}
