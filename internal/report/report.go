// Package report builds read-only plain-text dossiers of requirements and
// offers for sharing with counterparties. Party names are redacted until a
// commitment binds the parties; the builder never mutates state.
package report

import (
	"fmt"
	"strings"

	"github.com/reciclo/broker/internal/deal"
	"github.com/reciclo/broker/internal/user"
)

// Party is a resolved display name for a record owner.
type Party struct {
	ID          string
	DisplayName string
}

// name renders the party for a dossier: the full display name when the
// parties are already bound, the redacted form otherwise.
func (p Party) name(bound bool) string {
	if bound {
		return p.DisplayName
	}
	return user.Redact(p.DisplayName)
}

// RequirementDossier renders the requirement with its ledger summary.
// Sellers are resolved through the sellers map; an unknown seller renders as
// its id, which is already opaque.
func RequirementDossier(d *deal.Deal, buyer Party, sellers map[string]Party) string {
	r := d.Requirement
	var b strings.Builder

	fmt.Fprintf(&b, "REQUIREMENT %s\n", r.ID)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	fmt.Fprintf(&b, "Buyer: %s\n", buyer.name(d.TotalCommitted() > 0))
	fmt.Fprintf(&b, "Material: %s", r.Material.Category)
	if r.Material.Subcategory != "" {
		fmt.Fprintf(&b, " / %s", r.Material.Subcategory)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Volume: %.3f %s, %s\n", r.TotalVolume, r.Unit, r.Frequency)
	fmt.Fprintf(&b, "Delivery: %s\n", r.DeliveryPlace)
	fmt.Fprintf(&b, "Window: %s to %s\n",
		r.Window.Start.Format("2006-01-02"), r.Window.End.Format("2006-01-02"))

	b.WriteString("\nPRICE FORMULA\n")
	writeFormula(&b, r.PriceFormula)
	fmt.Fprintf(&b, "Payment: %s via %s\n", r.PaymentType, r.PaymentMethod)
	if r.ManagementFeePerKg > 0 {
		fmt.Fprintf(&b, "Management fee: %.4f per kg\n", r.ManagementFeePerKg)
	}

	fmt.Fprintf(&b, "\nCOMMITMENTS (%.3f of %.3f %s secured)\n",
		d.TotalCommitted(), r.TotalVolume, r.Unit)
	for _, c := range d.Commitments {
		seller := Party{ID: sellerOf(d, c.OfferID), DisplayName: sellerOf(d, c.OfferID)}
		if p, ok := sellers[seller.ID]; ok {
			seller = p
		}
		fmt.Fprintf(&b, "  %.3f %s from %s (offer %s)\n", c.Volume, c.Unit, seller.name(true), c.OfferID)
	}
	if len(d.Commitments) == 0 {
		b.WriteString("  none yet\n")
	}
	return b.String()
}

// OfferDossier renders one offer with its negotiated terms and timeline.
func OfferDossier(d *deal.Deal, o *deal.Offer, buyer, seller Party) string {
	bound := hasCommitment(d, o.ID)
	var b strings.Builder

	fmt.Fprintf(&b, "OFFER %s against requirement %s\n", o.ID, o.RequirementID)
	fmt.Fprintf(&b, "Status: %s\n", o.Status)
	fmt.Fprintf(&b, "Seller: %s\n", seller.name(bound))
	fmt.Fprintf(&b, "Buyer: %s\n", buyer.name(bound))
	fmt.Fprintf(&b, "Volume: %.3f %s, %s\n", o.Volume, o.Unit, o.Frequency)
	if o.VehicleType != "" {
		fmt.Fprintf(&b, "Vehicle: %s\n", o.VehicleType)
	}
	fmt.Fprintf(&b, "Window: %s to %s\n",
		o.Window.Start.Format("2006-01-02"), o.Window.End.Format("2006-01-02"))
	if o.PenaltyFeePerKg > 0 {
		fmt.Fprintf(&b, "Penalty fee: %.4f per kg (accepted)\n", o.PenaltyFeePerKg)
	}

	b.WriteString("\nTERMS\n")
	writeTerm(&b, "Quality", o.Terms.Quality)
	writeTerm(&b, "Logistics", o.Terms.Logistics)
	writeTerm(&b, "Delivery place", o.Terms.DeliveryPlace)
	writePriceTerm(&b, o.Terms.Price, d.Requirement.PriceFormula)
	writeTerm(&b, "Payment type", o.Terms.PaymentType)
	writeTerm(&b, "Payment method", o.Terms.PaymentMethod)

	if reason := o.RejectionReason(); reason != "" {
		fmt.Fprintf(&b, "\nRejection reason: %s\n", reason)
	}
	if len(o.Log) > 0 {
		b.WriteString("\nTIMELINE\n")
		for _, e := range o.Log {
			fmt.Fprintf(&b, "  %s [%s] %s\n", e.At.Format("2006-01-02 15:04"), e.Event, e.Message)
		}
	}
	return b.String()
}

func writeTerm(b *strings.Builder, label string, t deal.Term) {
	if t.Accepted {
		fmt.Fprintf(b, "  %s: accepted\n", label)
		return
	}
	fmt.Fprintf(b, "  %s: counter-proposal: %s\n", label, t.CounterProposal)
}

func writePriceTerm(b *strings.Builder, t deal.PriceTerm, original deal.Formula) {
	if t.Accepted {
		fmt.Fprintf(b, "  Price: accepted (total %.2f)\n", original.Total())
		return
	}
	fmt.Fprintf(b, "  Price: counter-formula (total %.2f, was %.2f)\n", t.Counter.Total(), original.Total())
	for _, c := range t.Counter.Components {
		marker := ""
		if c.IsNew {
			marker = " [new]"
		} else if c.Value != c.OriginalValue {
			marker = fmt.Sprintf(" [was %.2f]", c.OriginalValue)
		}
		fmt.Fprintf(b, "    %s: %.2f%s\n", c.Name, c.Value, marker)
	}
	if t.Counter.Observation != "" {
		fmt.Fprintf(b, "    Observation: %s\n", t.Counter.Observation)
	}
}

func writeFormula(b *strings.Builder, f deal.Formula) {
	for _, c := range f.Components {
		fmt.Fprintf(b, "  %s: %.2f\n", c.Name, c.Value)
	}
	fmt.Fprintf(b, "  Total: %.2f\n", f.Total())
}

func hasCommitment(d *deal.Deal, offerID string) bool {
	for _, c := range d.Commitments {
		if c.OfferID == offerID {
			return true
		}
	}
	return false
}

func sellerOf(d *deal.Deal, offerID string) string {
	if o, err := d.Offer(offerID); err == nil {
		return o.SellerID
	}
	return offerID
}
