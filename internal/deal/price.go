package deal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// formulaSchemaVersion is the current wire version for serialized price
// formulas. Decoding rejects any other version instead of guessing.
const formulaSchemaVersion = 1

// Component is one named line of a price formula. The committed price is
// the arithmetic sum of all component values.
type Component struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Formula is the buyer's ordered price breakdown.
type Formula struct {
	Components []Component
}

// Total returns the arithmetic sum of all components.
func (f Formula) Total() float64 {
	var total float64
	for _, c := range f.Components {
		total += c.Value
	}
	return total
}

// Validate checks that the formula is well-formed: at least one component,
// no empty or duplicated names.
func (f Formula) Validate() error {
	if len(f.Components) == 0 {
		return validationf("price formula must have at least one component")
	}
	seen := make(map[string]bool, len(f.Components))
	for _, c := range f.Components {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return validationf("price formula component has an empty name")
		}
		if seen[name] {
			return validationf("price formula component %q appears twice", name)
		}
		seen[name] = true
	}
	return nil
}

// formulaEnvelope is the versioned serialized form of a Formula.
type formulaEnvelope struct {
	Version    int         `json:"v"`
	Components []Component `json:"components"`
}

// MarshalJSON encodes the formula inside a versioned envelope.
func (f Formula) MarshalJSON() ([]byte, error) {
	return json.Marshal(formulaEnvelope{Version: formulaSchemaVersion, Components: f.Components})
}

// UnmarshalJSON decodes a versioned formula envelope, rejecting malformed
// or unversioned payloads rather than treating them as freeform text.
func (f *Formula) UnmarshalJSON(data []byte) error {
	var env formulaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: malformed price formula: %v", ErrValidation, err)
	}
	if env.Version != formulaSchemaVersion {
		return fmt.Errorf("%w: unsupported price formula version %d", ErrValidation, env.Version)
	}
	f.Components = env.Components
	return f.Validate()
}

// CounterComponent is one line of a seller's counter-formula. OriginalValue
// carries the buyer's declared value for audit and display; IsNew marks
// variables the seller introduced that have no buyer original.
type CounterComponent struct {
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	OriginalValue float64 `json:"originalValue"`
	IsNew         bool    `json:"isNew"`
}

// CounterFormula is a seller's alternative to the buyer's price formula,
// with an explicit provenance per variable and a free-text observation.
type CounterFormula struct {
	Components  []CounterComponent
	Observation string
}

// Total returns the arithmetic sum of the seller's proposed values.
func (cf CounterFormula) Total() float64 {
	var total float64
	for _, c := range cf.Components {
		total += c.Value
	}
	return total
}

// counterEnvelope is the versioned serialized form of a CounterFormula.
type counterEnvelope struct {
	Version     int                `json:"v"`
	Components  []CounterComponent `json:"components"`
	Observation string             `json:"observation,omitempty"`
}

// MarshalJSON encodes the counter-formula inside a versioned envelope.
func (cf CounterFormula) MarshalJSON() ([]byte, error) {
	return json.Marshal(counterEnvelope{
		Version:     formulaSchemaVersion,
		Components:  cf.Components,
		Observation: cf.Observation,
	})
}

// UnmarshalJSON decodes a versioned counter-formula envelope.
func (cf *CounterFormula) UnmarshalJSON(data []byte) error {
	var env counterEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: malformed counter formula: %v", ErrValidation, err)
	}
	if env.Version != formulaSchemaVersion {
		return fmt.Errorf("%w: unsupported counter formula version %d", ErrValidation, env.Version)
	}
	cf.Components = env.Components
	cf.Observation = env.Observation
	return nil
}

// BuildCounter constructs a seller counter-formula from the buyer's original
// formula and the seller's proposed components. Variables matched by name
// carry the buyer's original value; unmatched ones are flagged as new with
// a zero original.
func BuildCounter(original Formula, proposed []Component, observation string) (CounterFormula, error) {
	if len(proposed) == 0 {
		return CounterFormula{}, validationf("counter formula must have at least one component")
	}

	originals := make(map[string]float64, len(original.Components))
	for _, c := range original.Components {
		originals[c.Name] = c.Value
	}

	cf := CounterFormula{Observation: observation}
	seen := make(map[string]bool, len(proposed))
	for _, p := range proposed {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return CounterFormula{}, validationf("counter formula component has an empty name")
		}
		if seen[name] {
			return CounterFormula{}, validationf("counter formula component %q appears twice", name)
		}
		seen[name] = true

		origValue, exists := originals[name]
		cf.Components = append(cf.Components, CounterComponent{
			Name:          name,
			Value:         p.Value,
			OriginalValue: origValue,
			IsNew:         !exists,
		})
	}
	return cf, nil
}

// Reconcile rebuilds the provenance of a counter-formula against the
// buyer's original formula. Round-tripping a counter through serialization
// and Reconcile reproduces identical IsNew flags and original values, so a
// stored counter can always be re-opened as an editable table.
func (cf CounterFormula) Reconcile(original Formula) CounterFormula {
	proposed := make([]Component, len(cf.Components))
	for i, c := range cf.Components {
		proposed[i] = Component{Name: c.Name, Value: c.Value}
	}
	out, err := BuildCounter(original, proposed, cf.Observation)
	if err != nil {
		// cf was already validated on construction; a reconcile of valid
		// input cannot fail, but keep the stored values if it ever does.
		return cf
	}
	return out
}
