package report

import (
	"strings"
	"testing"
	"time"

	"github.com/reciclo/broker/internal/deal"
	"github.com/reciclo/broker/internal/ident"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testDeal(t *testing.T) (*deal.Deal, string, string, string) {
	t.Helper()
	buyerID := ident.New(ident.KindUser)
	r, err := deal.NewRequirement(buyerID, deal.RequirementInput{
		Material:      deal.MaterialSpec{Category: "plastics", Subcategory: "PET"},
		TotalVolume:   100,
		Unit:          "Ton",
		Frequency:     "monthly",
		Quality:       deal.ClauseDoc{Text: "baled"},
		Logistics:     deal.ClauseDoc{Text: "seller delivers"},
		DeliveryPlace: "Plant 4, Monterrey",
		PriceFormula: deal.Formula{Components: []deal.Component{
			{Name: "Base", Value: 2000},
			{Name: "Flete", Value: 300},
		}},
		PaymentType:   "net-30",
		PaymentMethod: "transfer",
		Window: deal.DateRange{
			Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	}, testNow)
	if err != nil {
		t.Fatalf("NewRequirement: %v", err)
	}
	d := &deal.Deal{Requirement: r}
	if err := d.AdminApproveRequirement(testNow); err != nil {
		t.Fatalf("AdminApproveRequirement: %v", err)
	}

	sellerID := ident.New(ident.KindUser)
	o, err := d.AddOffer(sellerID, deal.OfferInput{
		Volume:    40,
		Frequency: "monthly",
		Terms: deal.OfferTerms{
			Quality:       deal.Term{Accepted: true},
			Logistics:     deal.Term{Accepted: false, CounterProposal: "buyer collects"},
			DeliveryPlace: deal.Term{Accepted: true},
			Price:         deal.PriceTerm{Accepted: true},
			PaymentType:   deal.Term{Accepted: true},
			PaymentMethod: deal.Term{Accepted: true},
		},
		Window: deal.DateRange{
			Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC),
		},
		PenaltyFeeAccepted: true,
	}, testNow)
	if err != nil {
		t.Fatalf("AddOffer: %v", err)
	}
	return d, buyerID, sellerID, o.ID
}

func TestOfferDossier_RedactsUnboundParties(t *testing.T) {
	d, _, _, offerID := testDeal(t)
	o, _ := d.Offer(offerID)
	buyer := Party{DisplayName: "Vidrios Regios"}
	seller := Party{DisplayName: "Acopio Norte"}

	got := OfferDossier(d, o, buyer, seller)
	if strings.Contains(got, "Vidrios Regios") || strings.Contains(got, "Acopio Norte") {
		t.Errorf("unbound dossier leaks full names:\n%s", got)
	}
	if !strings.Contains(got, "V****** R*****") {
		t.Errorf("dossier missing redacted buyer:\n%s", got)
	}
	if !strings.Contains(got, "counter-proposal: buyer collects") {
		t.Errorf("dossier missing logistics counter:\n%s", got)
	}
	if !strings.Contains(got, "total 2300.00") {
		t.Errorf("dossier missing formula total:\n%s", got)
	}
}

func TestOfferDossier_RevealsBoundParties(t *testing.T) {
	d, buyerID, _, offerID := testDeal(t)
	adminID := ident.New(ident.KindUser)
	if err := d.AdminApproveOffer(adminID, offerID, false, testNow); err != nil {
		t.Fatalf("AdminApproveOffer: %v", err)
	}
	if err := d.BuyerApproveOffer(buyerID, offerID, testNow); err != nil {
		t.Fatalf("BuyerApproveOffer: %v", err)
	}

	o, _ := d.Offer(offerID)
	got := OfferDossier(d, o, Party{DisplayName: "Vidrios Regios"}, Party{DisplayName: "Acopio Norte"})
	if !strings.Contains(got, "Vidrios Regios") || !strings.Contains(got, "Acopio Norte") {
		t.Errorf("bound dossier should carry full names:\n%s", got)
	}
}

func TestOfferDossier_CounterFormula(t *testing.T) {
	d, _, sellerID, _ := testDeal(t)
	counter, err := deal.BuildCounter(d.Requirement.PriceFormula, []deal.Component{
		{Name: "Base", Value: 1800},
		{Name: "Transporte", Value: 200},
	}, "split the freight")
	if err != nil {
		t.Fatalf("BuildCounter: %v", err)
	}
	in := deal.OfferInput{
		Volume:    30,
		Frequency: "monthly",
		Terms: deal.OfferTerms{
			Quality:       deal.Term{Accepted: true},
			Logistics:     deal.Term{Accepted: true},
			DeliveryPlace: deal.Term{Accepted: true},
			Price:         deal.PriceTerm{Accepted: false, Counter: &counter},
			PaymentType:   deal.Term{Accepted: true},
			PaymentMethod: deal.Term{Accepted: true},
		},
		Window: deal.DateRange{
			Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC),
		},
		PenaltyFeeAccepted: true,
	}
	o, err := d.AddOffer(sellerID, in, testNow)
	if err != nil {
		t.Fatalf("AddOffer: %v", err)
	}

	got := OfferDossier(d, o, Party{DisplayName: "B"}, Party{DisplayName: "S"})
	for _, want := range []string{
		"counter-formula (total 2000.00, was 2300.00)",
		"Base: 1800.00 [was 2000.00]",
		"Transporte: 200.00 [new]",
		"Observation: split the freight",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("dossier missing %q:\n%s", want, got)
		}
	}
}

func TestRequirementDossier(t *testing.T) {
	d, buyerID, sellerID, offerID := testDeal(t)
	adminID := ident.New(ident.KindUser)
	if err := d.AdminApproveOffer(adminID, offerID, false, testNow); err != nil {
		t.Fatalf("AdminApproveOffer: %v", err)
	}
	if err := d.BuyerApproveOffer(buyerID, offerID, testNow); err != nil {
		t.Fatalf("BuyerApproveOffer: %v", err)
	}

	got := RequirementDossier(d,
		Party{ID: buyerID, DisplayName: "Vidrios Regios"},
		map[string]Party{sellerID: {ID: sellerID, DisplayName: "Acopio Norte"}})

	for _, want := range []string{
		"Material: plastics / PET",
		"Volume: 100.000 Ton, monthly",
		"Total: 2300.00",
		"COMMITMENTS (40.000 of 100.000 Ton secured)",
		"40.000 Ton from Acopio Norte",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("dossier missing %q:\n%s", want, got)
		}
	}
}
