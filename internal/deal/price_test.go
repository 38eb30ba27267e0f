package deal

import (
	"encoding/json"
	"testing"
)

func TestFormula_Total(t *testing.T) {
	f := Formula{Components: []Component{
		{Name: "Base", Value: 2000},
		{Name: "Flete", Value: 300},
	}}
	if got := f.Total(); got != 2300 {
		t.Errorf("Total() = %v, want 2300", got)
	}
}

func TestFormula_Validate(t *testing.T) {
	tests := []struct {
		name    string
		formula Formula
		wantErr bool
	}{
		{"valid", Formula{Components: []Component{{Name: "Base", Value: 100}}}, false},
		{"empty", Formula{}, true},
		{"blank name", Formula{Components: []Component{{Name: "  ", Value: 1}}}, true},
		{"duplicate name", Formula{Components: []Component{
			{Name: "Base", Value: 1}, {Name: "Base", Value: 2},
		}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.formula.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormula_JSONRoundTrip(t *testing.T) {
	f := Formula{Components: []Component{
		{Name: "Base", Value: 2000},
		{Name: "Flete", Value: 300},
	}}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back Formula
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(back.Components) != 2 || back.Components[0] != f.Components[0] || back.Components[1] != f.Components[1] {
		t.Errorf("round trip changed components: %+v", back.Components)
	}
}

func TestFormula_UnmarshalRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"freeform text", `"Base 2000 + Flete 300"`},
		{"bare array", `[{"name":"Base","value":2000}]`},
		{"wrong version", `{"v":2,"components":[{"name":"Base","value":1}]}`},
		{"no components", `{"v":1,"components":[]}`},
		{"not json", `Base=2000`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Formula
			if err := json.Unmarshal([]byte(tt.data), &f); err == nil {
				t.Errorf("Unmarshal(%s) succeeded, want error", tt.data)
			}
		})
	}
}

func TestBuildCounter(t *testing.T) {
	original := Formula{Components: []Component{
		{Name: "Base", Value: 2000},
		{Name: "Flete", Value: 300},
	}}

	// Seller lowers Base, drops Flete, introduces Transporte.
	counter, err := BuildCounter(original, []Component{
		{Name: "Base", Value: 1800},
		{Name: "Transporte", Value: 200},
	}, "transport handled by us")
	if err != nil {
		t.Fatalf("BuildCounter() error = %v", err)
	}

	if got := counter.Total(); got != 2000 {
		t.Errorf("counter Total() = %v, want 2000", got)
	}

	base := counter.Components[0]
	if base.Name != "Base" || base.IsNew || base.OriginalValue != 2000 || base.Value != 1800 {
		t.Errorf("Base component = %+v, want carried-over with original 2000", base)
	}

	transporte := counter.Components[1]
	if transporte.Name != "Transporte" || !transporte.IsNew || transporte.OriginalValue != 0 {
		t.Errorf("Transporte component = %+v, want new with zero original", transporte)
	}
}

func TestBuildCounter_Invalid(t *testing.T) {
	original := Formula{Components: []Component{{Name: "Base", Value: 100}}}

	if _, err := BuildCounter(original, nil, ""); err == nil {
		t.Error("BuildCounter(empty) succeeded, want error")
	}
	if _, err := BuildCounter(original, []Component{{Name: "", Value: 1}}, ""); err == nil {
		t.Error("BuildCounter(blank name) succeeded, want error")
	}
	if _, err := BuildCounter(original, []Component{
		{Name: "X", Value: 1}, {Name: "X", Value: 2},
	}, ""); err == nil {
		t.Error("BuildCounter(duplicate) succeeded, want error")
	}
}

// Serializing a counter-proposal and reconstructing the editable table from
// the buyer's original formula must reproduce the same provenance.
func TestCounterFormula_RoundTrip(t *testing.T) {
	original := Formula{Components: []Component{
		{Name: "Base", Value: 2000},
		{Name: "Flete", Value: 300},
	}}
	counter, err := BuildCounter(original, []Component{
		{Name: "Base", Value: 1800},
		{Name: "Transporte", Value: 200},
	}, "obs")
	if err != nil {
		t.Fatalf("BuildCounter() error = %v", err)
	}

	data, err := json.Marshal(counter)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var stored CounterFormula
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	rebuilt := stored.Reconcile(original)
	if len(rebuilt.Components) != len(counter.Components) {
		t.Fatalf("rebuilt has %d components, want %d", len(rebuilt.Components), len(counter.Components))
	}
	for i := range counter.Components {
		if rebuilt.Components[i] != counter.Components[i] {
			t.Errorf("component %d = %+v, want %+v", i, rebuilt.Components[i], counter.Components[i])
		}
	}
	if rebuilt.Observation != "obs" {
		t.Errorf("observation = %q, want %q", rebuilt.Observation, "obs")
	}
}
