package deal

import (
	"errors"
	"testing"
	"time"

	"github.com/reciclo/broker/internal/ident"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRequirementInput() RequirementInput {
	return RequirementInput{
		Material:      MaterialSpec{Category: "plastics", Subcategory: "PET"},
		TotalVolume:   100,
		Unit:          "Ton",
		Frequency:     "monthly",
		Quality:       ClauseDoc{Text: "baled, max 2% contamination"},
		Logistics:     ClauseDoc{Text: "seller delivers"},
		DeliveryPlace: "Plant 4, Monterrey",
		PriceFormula: Formula{Components: []Component{
			{Name: "Base", Value: 2000},
			{Name: "Flete", Value: 300},
		}},
		PaymentType:        "net-30",
		PaymentMethod:      "transfer",
		ManagementFeePerKg: 0.05,
		Window: DateRange{
			Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	}
}

func acceptedTerms() OfferTerms {
	return OfferTerms{
		Quality:       Term{Accepted: true},
		Logistics:     Term{Accepted: true},
		DeliveryPlace: Term{Accepted: true},
		Price:         PriceTerm{Accepted: true},
		PaymentType:   Term{Accepted: true},
		PaymentMethod: Term{Accepted: true},
	}
}

func testOfferInput(volume float64) OfferInput {
	return OfferInput{
		Volume:             volume,
		Frequency:          "monthly",
		VehicleType:        "torton",
		Terms:              acceptedTerms(),
		Window:             DateRange{Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC)},
		PenaltyFeeAccepted: true,
		PenaltyFeePerKg:    0.05,
	}
}

// activeDeal builds a moderated requirement ready to receive offers.
func activeDeal(t *testing.T) (*Deal, string) {
	t.Helper()
	buyerID := ident.New(ident.KindUser)
	r, err := NewRequirement(buyerID, testRequirementInput(), testNow)
	if err != nil {
		t.Fatalf("NewRequirement: %v", err)
	}
	d := &Deal{Requirement: r}
	if err := d.AdminApproveRequirement(testNow); err != nil {
		t.Fatalf("AdminApproveRequirement: %v", err)
	}
	return d, buyerID
}

// moderatedOffer submits an offer and walks it through admin approval, so it
// sits with the buyer.
func moderatedOffer(t *testing.T, d *Deal, volume float64) (offerID, sellerID string) {
	t.Helper()
	sellerID = ident.New(ident.KindUser)
	o, err := d.AddOffer(sellerID, testOfferInput(volume), testNow)
	if err != nil {
		t.Fatalf("AddOffer: %v", err)
	}
	adminID := ident.New(ident.KindUser)
	if err := d.AdminApproveOffer(adminID, o.ID, false, testNow); err != nil {
		t.Fatalf("AdminApproveOffer: %v", err)
	}
	return o.ID, sellerID
}

func TestRequirementModeration(t *testing.T) {
	buyerID := ident.New(ident.KindUser)

	t.Run("approve activates", func(t *testing.T) {
		r, err := NewRequirement(buyerID, testRequirementInput(), testNow)
		if err != nil {
			t.Fatalf("NewRequirement: %v", err)
		}
		if r.Status != ReqPendingAdmin {
			t.Fatalf("status = %s, want %s", r.Status, ReqPendingAdmin)
		}
		if r.PendingSince == nil {
			t.Error("pending_admin record should carry a pending-since stamp")
		}
		d := &Deal{Requirement: r}
		if err := d.AdminApproveRequirement(testNow); err != nil {
			t.Fatalf("AdminApproveRequirement: %v", err)
		}
		if d.Requirement.Status != ReqActive {
			t.Errorf("status = %s, want %s", d.Requirement.Status, ReqActive)
		}
		if d.Requirement.PendingSince != nil {
			t.Error("active record should not carry a pending-since stamp")
		}
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		r, _ := NewRequirement(buyerID, testRequirementInput(), testNow)
		d := &Deal{Requirement: r}
		err := d.AdminRejectRequirement("   ", testNow)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
		if d.Requirement.Status != ReqPendingAdmin {
			t.Errorf("failed rejection mutated status to %s", d.Requirement.Status)
		}
	})

	t.Run("reject stores the reason", func(t *testing.T) {
		r, _ := NewRequirement(buyerID, testRequirementInput(), testNow)
		d := &Deal{Requirement: r}
		if err := d.AdminRejectRequirement("incomplete logistics clause", testNow); err != nil {
			t.Fatalf("AdminRejectRequirement: %v", err)
		}
		if d.Requirement.Status != ReqRejected {
			t.Errorf("status = %s, want %s", d.Requirement.Status, ReqRejected)
		}
		if d.Requirement.RejectionReason != "incomplete logistics clause" {
			t.Errorf("reason = %q", d.Requirement.RejectionReason)
		}
	})

	t.Run("approve is not repeatable", func(t *testing.T) {
		d, _ := activeDeal(t)
		if err := d.AdminApproveRequirement(testNow); !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("err = %v, want ErrIllegalTransition", err)
		}
	})
}

func TestRequirementInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RequirementInput)
	}{
		{"zero volume", func(in *RequirementInput) { in.TotalVolume = 0 }},
		{"missing category", func(in *RequirementInput) { in.Material.Category = "" }},
		{"missing unit", func(in *RequirementInput) { in.Unit = " " }},
		{"inverted window", func(in *RequirementInput) { in.Window.Start, in.Window.End = in.Window.End, in.Window.Start }},
		{"empty formula", func(in *RequirementInput) { in.PriceFormula.Components = nil }},
		{"negative fee", func(in *RequirementInput) { in.ManagementFeePerKg = -1 }},
		{"attachment and url", func(in *RequirementInput) {
			in.Quality.AttachmentKey = "k"
			in.Quality.ReferenceURL = "https://example.com/spec.pdf"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testRequirementInput()
			tt.mutate(&in)
			if _, err := NewRequirement(ident.New(ident.KindUser), in, testNow); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestOfferCreationGuards(t *testing.T) {
	t.Run("requirement must be active", func(t *testing.T) {
		buyerID := ident.New(ident.KindUser)
		r, _ := NewRequirement(buyerID, testRequirementInput(), testNow)
		d := &Deal{Requirement: r}
		_, err := d.AddOffer(ident.New(ident.KindUser), testOfferInput(10), testNow)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("err = %v, want ErrIllegalTransition", err)
		}
	})

	t.Run("buyer cannot offer on own requirement", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		_, err := d.AddOffer(buyerID, testOfferInput(10), testNow)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("penalty fee must be accepted", func(t *testing.T) {
		d, _ := activeDeal(t)
		in := testOfferInput(10)
		in.PenaltyFeeAccepted = false
		if _, err := d.AddOffer(ident.New(ident.KindUser), in, testNow); !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("offer window must fit the requirement window", func(t *testing.T) {
		d, _ := activeDeal(t)
		in := testOfferInput(10)
		in.Window.End = time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
		if _, err := d.AddOffer(ident.New(ident.KindUser), in, testNow); !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("declined term needs a counter-proposal", func(t *testing.T) {
		d, _ := activeDeal(t)
		in := testOfferInput(10)
		in.Terms.Logistics = Term{Accepted: false}
		if _, err := d.AddOffer(ident.New(ident.KindUser), in, testNow); !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("declined price needs a counter-formula", func(t *testing.T) {
		d, _ := activeDeal(t)
		in := testOfferInput(10)
		in.Terms.Price = PriceTerm{Accepted: false}
		if _, err := d.AddOffer(ident.New(ident.KindUser), in, testNow); !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("unit is copied from the requirement", func(t *testing.T) {
		d, _ := activeDeal(t)
		o, err := d.AddOffer(ident.New(ident.KindUser), testOfferInput(10), testNow)
		if err != nil {
			t.Fatalf("AddOffer: %v", err)
		}
		if o.Unit != d.Requirement.Unit {
			t.Errorf("offer unit = %q, want %q", o.Unit, d.Requirement.Unit)
		}
		if o.Status != OfferPendingAdmin {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingAdmin)
		}
	})
}

// TestVolumeLedger walks the quantity scenario end to end: a 100 Ton
// requirement absorbs a 60 Ton offer directly, parks a 50 Ton offer behind a
// quantity increase, and completes once the admin raises the total to 110.
func TestVolumeLedger(t *testing.T) {
	d, buyerID := activeDeal(t)

	offerA, _ := moderatedOffer(t, d, 60)
	if err := d.BuyerApproveOffer(buyerID, offerA, testNow); err != nil {
		t.Fatalf("approve offer A: %v", err)
	}
	if got := d.TotalCommitted(); got != 60 {
		t.Fatalf("committed = %.0f, want 60", got)
	}
	if d.Requirement.Status != ReqActive {
		t.Fatalf("requirement status = %s, want %s", d.Requirement.Status, ReqActive)
	}
	if len(d.Commitments) != 1 {
		t.Fatalf("commitments = %d, want 1", len(d.Commitments))
	}

	offerB, _ := moderatedOffer(t, d, 50)
	if err := d.BuyerApproveOffer(buyerID, offerB, testNow); err != nil {
		t.Fatalf("approve offer B: %v", err)
	}
	if d.Requirement.Status != ReqPendingQuantityIncrease {
		t.Fatalf("requirement status = %s, want %s", d.Requirement.Status, ReqPendingQuantityIncrease)
	}
	inc := d.Requirement.PendingIncrease
	if inc == nil {
		t.Fatal("pending increase not recorded")
	}
	if inc.NewTotal != 110 {
		t.Errorf("pending new total = %.0f, want 110", inc.NewTotal)
	}
	if inc.TriggeringOfferID != offerB {
		t.Errorf("triggering offer = %s, want %s", inc.TriggeringOfferID, offerB)
	}
	// The commitment is deferred until the admin rules.
	if len(d.Commitments) != 1 {
		t.Fatalf("commitments = %d, want 1 while the increase is pending", len(d.Commitments))
	}
	ob, _ := d.Offer(offerB)
	if ob.Status != OfferPendingBuyer {
		t.Errorf("offer B status = %s, want %s", ob.Status, OfferPendingBuyer)
	}

	if err := d.ApproveQuantityIncrease(testNow); err != nil {
		t.Fatalf("ApproveQuantityIncrease: %v", err)
	}
	if d.Requirement.TotalVolume != 110 {
		t.Errorf("total volume = %.0f, want 110", d.Requirement.TotalVolume)
	}
	if got := d.TotalCommitted(); got != 110 {
		t.Errorf("committed = %.0f, want 110", got)
	}
	ob, _ = d.Offer(offerB)
	if ob.Status != OfferApproved {
		t.Errorf("offer B status = %s, want %s", ob.Status, OfferApproved)
	}
	if d.Requirement.Status != ReqCompleted {
		t.Errorf("requirement status = %s, want %s", d.Requirement.Status, ReqCompleted)
	}
	if d.Requirement.PendingIncrease != nil {
		t.Error("pending increase should be cleared after the decision")
	}
}

func TestBuyerApproveOffer_NotRepeatable(t *testing.T) {
	d, buyerID := activeDeal(t)
	offerID, _ := moderatedOffer(t, d, 40)
	if err := d.BuyerApproveOffer(buyerID, offerID, testNow); err != nil {
		t.Fatalf("first approval: %v", err)
	}
	err := d.BuyerApproveOffer(buyerID, offerID, testNow)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("second approval err = %v, want ErrIllegalTransition", err)
	}
	if len(d.Commitments) != 1 {
		t.Errorf("commitments = %d, want exactly 1", len(d.Commitments))
	}
}

func TestBuyerApproveOffer_OwnerOnly(t *testing.T) {
	d, _ := activeDeal(t)
	offerID, sellerID := moderatedOffer(t, d, 40)
	if err := d.BuyerApproveOffer(sellerID, offerID, testNow); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	o, _ := d.Offer(offerID)
	if o.Status != OfferPendingBuyer {
		t.Errorf("failed approval mutated offer status to %s", o.Status)
	}
}

func TestBuyerRejectOffer(t *testing.T) {
	d, buyerID := activeDeal(t)
	offerID, _ := moderatedOffer(t, d, 40)

	if err := d.BuyerRejectOffer(buyerID, offerID, "", testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty reason err = %v, want ErrValidation", err)
	}
	if err := d.BuyerRejectOffer(buyerID, offerID, "price too high", testNow); err != nil {
		t.Fatalf("BuyerRejectOffer: %v", err)
	}
	o, _ := d.Offer(offerID)
	if o.Status != OfferRejected {
		t.Errorf("status = %s, want %s", o.Status, OfferRejected)
	}
	if got := o.RejectionReason(); got != "price too high" {
		t.Errorf("rejection reason = %q", got)
	}
}

func TestRejectQuantityIncrease(t *testing.T) {
	d, buyerID := activeDeal(t)
	offerA, _ := moderatedOffer(t, d, 60)
	if err := d.BuyerApproveOffer(buyerID, offerA, testNow); err != nil {
		t.Fatalf("approve offer A: %v", err)
	}
	offerB, _ := moderatedOffer(t, d, 50)
	if err := d.BuyerApproveOffer(buyerID, offerB, testNow); err != nil {
		t.Fatalf("approve offer B: %v", err)
	}

	adminID := ident.New(ident.KindUser)
	if err := d.RejectQuantityIncrease(adminID, "", testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty reason err = %v, want ErrValidation", err)
	}
	if err := d.RejectQuantityIncrease(adminID, "supply cap reached", testNow); err != nil {
		t.Fatalf("RejectQuantityIncrease: %v", err)
	}
	if d.Requirement.Status != ReqActive {
		t.Errorf("requirement status = %s, want %s", d.Requirement.Status, ReqActive)
	}
	if d.Requirement.TotalVolume != 100 {
		t.Errorf("total volume = %.0f, want unchanged 100", d.Requirement.TotalVolume)
	}
	ob, _ := d.Offer(offerB)
	if ob.Status != OfferRejected {
		t.Errorf("offer B status = %s, want %s", ob.Status, OfferRejected)
	}
	if got := ob.RejectionReason(); got != "supply cap reached" {
		t.Errorf("rejection reason = %q", got)
	}
	if got := d.TotalCommitted(); got != 60 {
		t.Errorf("committed = %.0f, want 60", got)
	}
}

// pendingIncreaseDeal builds a requirement parked in the quantity-increase
// sub-protocol: 60 of 100 committed, a 50-volume trigger awaiting the admin.
func pendingIncreaseDeal(t *testing.T) (d *Deal, buyerID, triggerID, triggerSeller string) {
	t.Helper()
	d, buyerID = activeDeal(t)
	offerA, _ := moderatedOffer(t, d, 60)
	if err := d.BuyerApproveOffer(buyerID, offerA, testNow); err != nil {
		t.Fatalf("approve offer A: %v", err)
	}
	triggerID, triggerSeller = moderatedOffer(t, d, 50)
	if err := d.BuyerApproveOffer(buyerID, triggerID, testNow); err != nil {
		t.Fatalf("approve trigger: %v", err)
	}
	if d.Requirement.Status != ReqPendingQuantityIncrease {
		t.Fatalf("requirement status = %s, want %s", d.Requirement.Status, ReqPendingQuantityIncrease)
	}
	return d, buyerID, triggerID, triggerSeller
}

func TestQuantityIncreaseLocksTriggeringOffer(t *testing.T) {
	adminID := ident.New(ident.KindUser)

	requireLocked := func(t *testing.T, d *Deal, triggerID string, err error) {
		t.Helper()
		if !errors.Is(err, ErrConsistency) {
			t.Fatalf("err = %v, want ErrConsistency", err)
		}
		o, _ := d.Offer(triggerID)
		if o.Status != OfferPendingBuyer {
			t.Errorf("trigger status = %s, want %s", o.Status, OfferPendingBuyer)
		}
	}

	t.Run("buyer cannot reject the trigger", func(t *testing.T) {
		d, buyerID, triggerID, _ := pendingIncreaseDeal(t)
		err := d.BuyerRejectOffer(buyerID, triggerID, "changed my mind", testNow)
		requireLocked(t, d, triggerID, err)
	})

	t.Run("seller cannot resubmit the trigger", func(t *testing.T) {
		d, _, triggerID, sellerID := pendingIncreaseDeal(t)
		err := d.SellerResubmit(sellerID, triggerID, testOfferInput(80), testNow)
		requireLocked(t, d, triggerID, err)
		o, _ := d.Offer(triggerID)
		if o.Volume != 50 {
			t.Errorf("trigger volume = %.0f, want unchanged 50", o.Volume)
		}
	})

	t.Run("admin cannot question the trigger", func(t *testing.T) {
		d, _, triggerID, _ := pendingIncreaseDeal(t)
		err := d.AskSeller(adminID, triggerID, "can you split the load?", testNow)
		requireLocked(t, d, triggerID, err)
	})

	t.Run("admin cannot propose edits on the trigger", func(t *testing.T) {
		d, _, triggerID, _ := pendingIncreaseDeal(t)
		volume := 40.0
		err := d.AdminProposeOfferEdit(adminID, triggerID, OfferEdit{Volume: &volume}, testNow)
		requireLocked(t, d, triggerID, err)
	})

	t.Run("admin cannot hide the trigger", func(t *testing.T) {
		d, _, triggerID, _ := pendingIncreaseDeal(t)
		err := d.HideOffer(triggerID, testNow)
		requireLocked(t, d, triggerID, err)
	})

	t.Run("decision still lands after a blocked command", func(t *testing.T) {
		d, buyerID, triggerID, _ := pendingIncreaseDeal(t)
		if err := d.BuyerRejectOffer(buyerID, triggerID, "changed my mind", testNow); !errors.Is(err, ErrConsistency) {
			t.Fatalf("reject trigger err = %v, want ErrConsistency", err)
		}
		if err := d.RejectQuantityIncrease(adminID, "supply cap reached", testNow); err != nil {
			t.Fatalf("RejectQuantityIncrease: %v", err)
		}
		if d.Requirement.Status != ReqActive {
			t.Errorf("requirement status = %s, want %s", d.Requirement.Status, ReqActive)
		}
	})

	t.Run("other offers stay available", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		offerA, _ := moderatedOffer(t, d, 60)
		if err := d.BuyerApproveOffer(buyerID, offerA, testNow); err != nil {
			t.Fatalf("approve offer A: %v", err)
		}
		bystander, _ := moderatedOffer(t, d, 10)
		trigger, _ := moderatedOffer(t, d, 50)
		if err := d.BuyerApproveOffer(buyerID, trigger, testNow); err != nil {
			t.Fatalf("approve trigger: %v", err)
		}
		if err := d.BuyerRejectOffer(buyerID, bystander, "too small", testNow); err != nil {
			t.Fatalf("reject bystander offer: %v", err)
		}
	})
}

func TestApproveQuantityIncrease_RefusalLeavesAggregateUntouched(t *testing.T) {
	d, _, triggerID, _ := pendingIncreaseDeal(t)

	// Drift the trigger's volume past the requested total, a state no
	// command can reach, and verify the refusal is side-effect free.
	o, _ := d.Offer(triggerID)
	o.Volume = 80

	if err := d.ApproveQuantityIncrease(testNow); !errors.Is(err, ErrConsistency) {
		t.Fatalf("err = %v, want ErrConsistency", err)
	}
	if d.Requirement.Status != ReqPendingQuantityIncrease {
		t.Errorf("requirement status = %s, want %s", d.Requirement.Status, ReqPendingQuantityIncrease)
	}
	if d.Requirement.TotalVolume != 100 {
		t.Errorf("total volume = %.0f, want unchanged 100", d.Requirement.TotalVolume)
	}
	if d.Requirement.PendingIncrease == nil {
		t.Error("pending increase cleared by a refused approval")
	}
	if got := d.TotalCommitted(); got != 60 {
		t.Errorf("committed = %.0f, want 60", got)
	}
	if o.Status != OfferPendingBuyer {
		t.Errorf("trigger status = %s, want %s", o.Status, OfferPendingBuyer)
	}
}

func TestAdminRejectOffer(t *testing.T) {
	d, _ := activeDeal(t)
	sellerID := ident.New(ident.KindUser)
	o, err := d.AddOffer(sellerID, testOfferInput(30), testNow)
	if err != nil {
		t.Fatalf("AddOffer: %v", err)
	}
	adminID := ident.New(ident.KindUser)
	if err := d.AdminRejectOffer(adminID, o.ID, "photos missing", testNow); err != nil {
		t.Fatalf("AdminRejectOffer: %v", err)
	}
	if o.Status != OfferRejected {
		t.Errorf("status = %s, want %s", o.Status, OfferRejected)
	}
	if got := o.RejectionReason(); got != "photos missing" {
		t.Errorf("rejection reason = %q", got)
	}
}

func TestAdminApproveOffer_ExpiredWindow(t *testing.T) {
	d, _ := activeDeal(t)
	offer, err := d.AddOffer(ident.New(ident.KindUser), testOfferInput(30), testNow)
	if err != nil {
		t.Fatalf("AddOffer: %v", err)
	}
	offerID := offer.ID
	adminID := ident.New(ident.KindUser)
	after := d.Requirement.Window.End.Add(24 * time.Hour)

	if err := d.AdminApproveOffer(adminID, offerID, false, after); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation without override", err)
	}
	if err := d.AdminApproveOffer(adminID, offerID, true, after); err != nil {
		t.Fatalf("override approval: %v", err)
	}
	o, _ := d.Offer(offerID)
	if o.Status != OfferPendingBuyer {
		t.Errorf("status = %s, want %s", o.Status, OfferPendingBuyer)
	}
	if got := o.lastLogOfKind(EventWindowOverride); got == nil {
		t.Error("override was not recorded on the timeline")
	}
}

func TestSellerReplyFlow(t *testing.T) {
	setup := func(t *testing.T) (*Deal, string, string, string) {
		d, _ := activeDeal(t)
		offerID, sellerID := moderatedOffer(t, d, 30)
		adminID := ident.New(ident.KindUser)
		if err := d.AskSeller(adminID, offerID, "can you confirm the bale weight?", testNow); err != nil {
			t.Fatalf("AskSeller: %v", err)
		}
		return d, offerID, sellerID, adminID
	}

	t.Run("plain reply keeps the status", func(t *testing.T) {
		d, offerID, sellerID, _ := setup(t)
		if err := d.SellerReply(sellerID, offerID, SellerActionReply, "800kg per bale", testNow); err != nil {
			t.Fatalf("SellerReply: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferPendingSellerAction {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingSellerAction)
		}
		if got := o.lastLogOfKind(EventSellerReply); got == nil || got.Message != "800kg per bale" {
			t.Errorf("reply not logged: %+v", got)
		}
	})

	t.Run("edit request parks the offer", func(t *testing.T) {
		d, offerID, sellerID, _ := setup(t)
		if err := d.SellerReply(sellerID, offerID, SellerActionRequestEdit, "need to lower the volume", testNow); err != nil {
			t.Fatalf("SellerReply: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferPendingEdit {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingEdit)
		}
	})

	t.Run("delete request parks the offer", func(t *testing.T) {
		d, offerID, sellerID, _ := setup(t)
		if err := d.SellerReply(sellerID, offerID, SellerActionRequestDelete, "cannot supply anymore", testNow); err != nil {
			t.Fatalf("SellerReply: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferPendingDeletion {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingDeletion)
		}
	})

	t.Run("only the owner may reply", func(t *testing.T) {
		d, offerID, _, _ := setup(t)
		err := d.SellerReply(ident.New(ident.KindUser), offerID, SellerActionReply, "hi", testNow)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestSellerResubmit(t *testing.T) {
	t.Run("edited offer returns to moderation", func(t *testing.T) {
		d, _ := activeDeal(t)
		offerID, sellerID := moderatedOffer(t, d, 30)
		in := testOfferInput(25)
		if err := d.SellerResubmit(sellerID, offerID, in, testNow); err != nil {
			t.Fatalf("SellerResubmit: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferPendingAdmin {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingAdmin)
		}
		if o.Volume != 25 {
			t.Errorf("volume = %.0f, want 25", o.Volume)
		}
	})

	t.Run("rejected offer cannot be edited", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		offerID, sellerID := moderatedOffer(t, d, 30)
		if err := d.BuyerRejectOffer(buyerID, offerID, "no", testNow); err != nil {
			t.Fatalf("BuyerRejectOffer: %v", err)
		}
		err := d.SellerResubmit(sellerID, offerID, testOfferInput(25), testNow)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("err = %v, want ErrIllegalTransition", err)
		}
		o, _ := d.Offer(offerID)
		if o.Volume != 30 {
			t.Errorf("failed resubmit mutated volume to %.0f", o.Volume)
		}
	})
}

func TestRequirementEditFlows(t *testing.T) {
	newVolume := 120.0

	t.Run("owner edit is merged on approval", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		edit := RequirementEdit{TotalVolume: &newVolume, Note: "demand grew"}
		if err := d.RequestRequirementEdit(buyerID, edit, testNow); err != nil {
			t.Fatalf("RequestRequirementEdit: %v", err)
		}
		if d.Requirement.Status != ReqPendingEdit {
			t.Fatalf("status = %s, want %s", d.Requirement.Status, ReqPendingEdit)
		}
		if err := d.DecideOwnerRequirementEdit(true, testNow); err != nil {
			t.Fatalf("DecideOwnerRequirementEdit: %v", err)
		}
		if d.Requirement.Status != ReqActive {
			t.Errorf("status = %s, want %s", d.Requirement.Status, ReqActive)
		}
		if d.Requirement.TotalVolume != 120 {
			t.Errorf("total volume = %.0f, want 120", d.Requirement.TotalVolume)
		}
		if d.Requirement.PendingEdits != nil {
			t.Error("pending edit should be cleared after the decision")
		}
	})

	t.Run("owner edit is discarded on rejection", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		edit := RequirementEdit{TotalVolume: &newVolume}
		if err := d.RequestRequirementEdit(buyerID, edit, testNow); err != nil {
			t.Fatalf("RequestRequirementEdit: %v", err)
		}
		if err := d.DecideOwnerRequirementEdit(false, testNow); err != nil {
			t.Fatalf("DecideOwnerRequirementEdit: %v", err)
		}
		if d.Requirement.TotalVolume != 100 {
			t.Errorf("total volume = %.0f, want unchanged 100", d.Requirement.TotalVolume)
		}
	})

	t.Run("admin edit waits for the owner", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		adminID := ident.New(ident.KindUser)
		edit := RequirementEdit{TotalVolume: &newVolume}
		if err := d.AdminProposeRequirementEdit(adminID, edit, testNow); err != nil {
			t.Fatalf("AdminProposeRequirementEdit: %v", err)
		}
		if d.Requirement.Status != ReqWaitingOwnerEditApproval {
			t.Fatalf("status = %s, want %s", d.Requirement.Status, ReqWaitingOwnerEditApproval)
		}
		// Only the owner rules on an admin-proposed edit.
		err := d.DecideAdminRequirementEdit(ident.New(ident.KindUser), true, testNow)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("stranger decision err = %v, want ErrForbidden", err)
		}
		if err := d.DecideAdminRequirementEdit(buyerID, true, testNow); err != nil {
			t.Fatalf("DecideAdminRequirementEdit: %v", err)
		}
		if d.Requirement.TotalVolume != 120 {
			t.Errorf("total volume = %.0f, want 120", d.Requirement.TotalVolume)
		}
	})

	t.Run("empty edit is refused", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		err := d.RequestRequirementEdit(buyerID, RequirementEdit{}, testNow)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
		if d.Requirement.Status != ReqActive {
			t.Errorf("failed edit mutated status to %s", d.Requirement.Status)
		}
	})
}

func TestOfferEditFlows(t *testing.T) {
	newVolume := 20.0

	t.Run("admin edit decided by the seller", func(t *testing.T) {
		d, _ := activeDeal(t)
		offerID, sellerID := moderatedOffer(t, d, 30)
		adminID := ident.New(ident.KindUser)
		if err := d.AdminProposeOfferEdit(adminID, offerID, OfferEdit{Volume: &newVolume}, testNow); err != nil {
			t.Fatalf("AdminProposeOfferEdit: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferWaitingOwnerEditApproval {
			t.Fatalf("status = %s, want %s", o.Status, OfferWaitingOwnerEditApproval)
		}
		if err := d.DecideAdminOfferEdit(sellerID, offerID, true, testNow); err != nil {
			t.Fatalf("DecideAdminOfferEdit: %v", err)
		}
		o, _ = d.Offer(offerID)
		if o.Status != OfferPendingBuyer {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingBuyer)
		}
		if o.Volume != 20 {
			t.Errorf("volume = %.0f, want 20", o.Volume)
		}
	})

	t.Run("rejection keeps the old content", func(t *testing.T) {
		d, _ := activeDeal(t)
		offerID, sellerID := moderatedOffer(t, d, 30)
		adminID := ident.New(ident.KindUser)
		if err := d.AdminProposeOfferEdit(adminID, offerID, OfferEdit{Volume: &newVolume}, testNow); err != nil {
			t.Fatalf("AdminProposeOfferEdit: %v", err)
		}
		if err := d.DecideAdminOfferEdit(sellerID, offerID, false, testNow); err != nil {
			t.Fatalf("DecideAdminOfferEdit: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferPendingBuyer {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingBuyer)
		}
		if o.Volume != 30 {
			t.Errorf("volume = %.0f, want unchanged 30", o.Volume)
		}
	})
}

func TestDeletionFlows(t *testing.T) {
	t.Run("requirement deletion hides the record", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		if err := d.RequestRequirementDeletion(buyerID, testNow); err != nil {
			t.Fatalf("RequestRequirementDeletion: %v", err)
		}
		if err := d.DecideRequirementDeletion(true, testNow); err != nil {
			t.Fatalf("DecideRequirementDeletion: %v", err)
		}
		if d.Requirement.Status != ReqHiddenByAdmin {
			t.Errorf("status = %s, want %s", d.Requirement.Status, ReqHiddenByAdmin)
		}
	})

	t.Run("rejected requirement deletion reactivates", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		if err := d.RequestRequirementDeletion(buyerID, testNow); err != nil {
			t.Fatalf("RequestRequirementDeletion: %v", err)
		}
		if err := d.DecideRequirementDeletion(false, testNow); err != nil {
			t.Fatalf("DecideRequirementDeletion: %v", err)
		}
		if d.Requirement.Status != ReqActive {
			t.Errorf("status = %s, want %s", d.Requirement.Status, ReqActive)
		}
	})

	t.Run("offer deletion hides the record", func(t *testing.T) {
		d, _ := activeDeal(t)
		offerID, sellerID := moderatedOffer(t, d, 30)
		adminID := ident.New(ident.KindUser)
		if err := d.AskSeller(adminID, offerID, "still able to supply?", testNow); err != nil {
			t.Fatalf("AskSeller: %v", err)
		}
		if err := d.SellerReply(sellerID, offerID, SellerActionRequestDelete, "no longer able", testNow); err != nil {
			t.Fatalf("SellerReply: %v", err)
		}
		if err := d.DecideOfferDeletion(adminID, offerID, true, "", testNow); err != nil {
			t.Fatalf("DecideOfferDeletion: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferHiddenByAdmin {
			t.Errorf("status = %s, want %s", o.Status, OfferHiddenByAdmin)
		}
	})

	t.Run("rejected offer deletion needs a reason", func(t *testing.T) {
		d, _ := activeDeal(t)
		offerID, sellerID := moderatedOffer(t, d, 30)
		adminID := ident.New(ident.KindUser)
		if err := d.AskSeller(adminID, offerID, "still able to supply?", testNow); err != nil {
			t.Fatalf("AskSeller: %v", err)
		}
		if err := d.SellerReply(sellerID, offerID, SellerActionRequestDelete, "no longer able", testNow); err != nil {
			t.Fatalf("SellerReply: %v", err)
		}
		if err := d.DecideOfferDeletion(adminID, offerID, false, "", testNow); !errors.Is(err, ErrValidation) {
			t.Fatalf("empty reason err = %v, want ErrValidation", err)
		}
		if err := d.DecideOfferDeletion(adminID, offerID, false, "offer still binding this cycle", testNow); err != nil {
			t.Fatalf("DecideOfferDeletion: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferPendingBuyer {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingBuyer)
		}
		if got := o.lastLogOfKind(EventAdminFeedback); got == nil {
			t.Error("feedback was not recorded on the timeline")
		}
	})
}

func TestOnBehalfCreation(t *testing.T) {
	t.Run("requirement waits for the owner", func(t *testing.T) {
		buyerID := ident.New(ident.KindUser)
		r, err := NewRequirementOnBehalf(buyerID, testRequirementInput(), testNow)
		if err != nil {
			t.Fatalf("NewRequirementOnBehalf: %v", err)
		}
		if r.Status != ReqPendingBuyerApproval {
			t.Fatalf("status = %s, want %s", r.Status, ReqPendingBuyerApproval)
		}
		d := &Deal{Requirement: r}
		if err := d.ConfirmRequirement(ident.New(ident.KindUser), testNow); !errors.Is(err, ErrForbidden) {
			t.Fatalf("stranger confirm err = %v, want ErrForbidden", err)
		}
		if err := d.ConfirmRequirement(buyerID, testNow); err != nil {
			t.Fatalf("ConfirmRequirement: %v", err)
		}
		if d.Requirement.Status != ReqActive {
			t.Errorf("status = %s, want %s", d.Requirement.Status, ReqActive)
		}
	})

	t.Run("offer waits for the owner", func(t *testing.T) {
		d, _ := activeDeal(t)
		sellerID := ident.New(ident.KindUser)
		o, err := d.AddOfferOnBehalf(sellerID, testOfferInput(30), testNow)
		if err != nil {
			t.Fatalf("AddOfferOnBehalf: %v", err)
		}
		if o.Status != OfferPendingSellerApproval {
			t.Fatalf("status = %s, want %s", o.Status, OfferPendingSellerApproval)
		}
		if err := d.ConfirmOffer(sellerID, o.ID, testNow); err != nil {
			t.Fatalf("ConfirmOffer: %v", err)
		}
		if o.Status != OfferPendingBuyer {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingBuyer)
		}
	})
}

func TestForceStatusOverrides(t *testing.T) {
	t.Run("requirement force clears stale side-state", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		offerID, _ := moderatedOffer(t, d, 120)
		if err := d.BuyerApproveOffer(buyerID, offerID, testNow); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if d.Requirement.PendingIncrease == nil {
			t.Fatal("expected a pending increase")
		}
		if err := d.ForceRequirementStatus(ReqActive, testNow); err != nil {
			t.Fatalf("ForceRequirementStatus: %v", err)
		}
		if d.Requirement.PendingIncrease != nil {
			t.Error("forced status should clear the pending increase")
		}
		if err := d.ForceRequirementStatus("nonsense", testNow); !errors.Is(err, ErrValidation) {
			t.Errorf("unknown status err = %v, want ErrValidation", err)
		}
	})

	t.Run("offer force is logged", func(t *testing.T) {
		d, buyerID := activeDeal(t)
		offerID, _ := moderatedOffer(t, d, 30)
		if err := d.BuyerRejectOffer(buyerID, offerID, "wrong price", testNow); err != nil {
			t.Fatalf("reject: %v", err)
		}
		adminID := ident.New(ident.KindUser)
		if err := d.ForceOfferStatus(adminID, offerID, OfferPendingBuyer, "rejection was a mistake", testNow); err != nil {
			t.Fatalf("ForceOfferStatus: %v", err)
		}
		o, _ := d.Offer(offerID)
		if o.Status != OfferPendingBuyer {
			t.Errorf("status = %s, want %s", o.Status, OfferPendingBuyer)
		}
		if got := o.lastLogOfKind(EventForcedStatus); got == nil {
			t.Error("forced move was not recorded on the timeline")
		}
	})
}

func TestHiding(t *testing.T) {
	d, _ := activeDeal(t)
	offerID, _ := moderatedOffer(t, d, 30)

	if err := d.HideOffer(offerID, testNow); err != nil {
		t.Fatalf("HideOffer: %v", err)
	}
	if err := d.HideOffer(offerID, testNow); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("second hide err = %v, want ErrIllegalTransition", err)
	}
	if err := d.HideRequirement(testNow); err != nil {
		t.Fatalf("HideRequirement: %v", err)
	}
	if err := d.HideRequirement(testNow); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("second hide err = %v, want ErrIllegalTransition", err)
	}
}

func TestAppendCommitment_Guards(t *testing.T) {
	d, buyerID := activeDeal(t)

	t.Run("foreign offer is refused", func(t *testing.T) {
		other, _ := activeDeal(t)
		offerID, _ := moderatedOffer(t, other, 30)
		o, _ := other.Offer(offerID)
		if err := d.appendCommitment(o, testNow); !errors.Is(err, ErrReferential) {
			t.Errorf("err = %v, want ErrReferential", err)
		}
	})

	t.Run("ledger never exceeds the total", func(t *testing.T) {
		offerID, _ := moderatedOffer(t, d, 100)
		if err := d.BuyerApproveOffer(buyerID, offerID, testNow); err != nil {
			t.Fatalf("approve: %v", err)
		}
		o, _ := d.Offer(offerID)
		if err := d.appendCommitment(o, testNow); !errors.Is(err, ErrConsistency) {
			t.Errorf("err = %v, want ErrConsistency", err)
		}
	})
}
