package ident

import (
	"strings"
	"testing"
)

func TestNew_Format(t *testing.T) {
	id := New(KindRequirement)
	if !strings.HasPrefix(id, "M1-REQ-") {
		t.Errorf("New(KindRequirement) = %q, want M1-REQ- prefix", id)
	}
	if err := Validate(id, Module, KindRequirement); err != nil {
		t.Errorf("Validate(New()) returned error: %v", err)
	}
}

func TestNew_Unique(t *testing.T) {
	a := New(KindOffer)
	b := New(KindOffer)
	if a == b {
		t.Errorf("two generated ids are equal: %q", a)
	}
}

func TestValidate(t *testing.T) {
	good := New(KindOffer)

	tests := []struct {
		name    string
		id      string
		module  string
		kind    Kind
		wantErr bool
	}{
		{"valid", good, Module, KindOffer, false},
		{"wrong kind", good, Module, KindRequirement, true},
		{"wrong module", good, "M2", KindOffer, true},
		{"empty", "", Module, KindOffer, true},
		{"no separators", "M1REQfoo", Module, KindRequirement, true},
		{"bad suffix", "M1-REQ-not-a-uuid", Module, KindRequirement, true},
		{"kind only", "REQ-" + good, Module, KindRequirement, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id, tt.module, tt.kind)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	id := New(KindCommitment)
	if !IsKind(id, KindCommitment) {
		t.Errorf("IsKind(%q, COM) = false, want true", id)
	}
	if IsKind(id, KindUser) {
		t.Errorf("IsKind(%q, USR) = true, want false", id)
	}
}
