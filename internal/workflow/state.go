package workflow

import (
	"encoding/json"
	"fmt"

	"npkchat/internal/chat"
	"npkchat/internal/pricing"
)

// StateVersion guards the metadata blob against stale encodings from forms
// opened by an older build.
const StateVersion = 1

// InstanceClasses is the fixed set of selectable compute classes, in display
// order.
var InstanceClasses = []string{"g3", "p2", "p3"}

// InstanceDisplay is the derived per-class figure set shown on an instance
// card, recomputed whenever the hash type or forced region changes.
type InstanceDisplay struct {
	Price     float64        `json:"price"`
	Hashes    pricing.Metric `json:"hashes"`
	HashPrice pricing.Metric `json:"hashPrice"`
}

// FormState is the configuration session's durable state. It rides in the
// form's private metadata, is re-read fresh at the start of every interaction
// callback, and is the only state that survives a round-trip; the block tree
// is always re-derived from it.
type FormState struct {
	Version int `json:"version"`

	HashType         *int   `json:"hashType,omitempty"`
	ForceRegion      string `json:"forceRegion,omitempty"`
	SelectedInstance string `json:"selectedInstance,omitempty"`

	// Ideal is the pricing-lookup snapshot per class; Instances carries the
	// derived display figures.
	Ideal     map[string]pricing.Instance `json:"idealInstances,omitempty"`
	Instances map[string]InstanceDisplay  `json:"instances,omitempty"`

	InstanceCount    int `json:"instanceCount"`
	InstanceDuration int `json:"instanceDuration"`

	WordlistEnabled bool `json:"wordlistEnabled"`
	MaskEnabled     bool `json:"maskEnabled"`

	HashFile   string   `json:"hashFile,omitempty"`
	Wordlist   string   `json:"wordlist,omitempty"`
	RulesFiles []string `json:"rulesFiles,omitempty"`
	Mask       string   `json:"mask,omitempty"`

	// Message is the originating channel/user/thread, captured once at open
	// time so the eventual result lands in the right place.
	Message chat.Message `json:"message"`
}

func NewFormState(origin chat.Message) *FormState {
	return &FormState{
		Version:          StateVersion,
		InstanceCount:    1,
		InstanceDuration: 1,
		Message:          origin,
	}
}

// ParseState decodes the metadata blob.
func ParseState(metadata string) (*FormState, error) {
	if metadata == "" {
		return nil, fmt.Errorf("form metadata is empty")
	}
	var s FormState
	if err := json.Unmarshal([]byte(metadata), &s); err != nil {
		return nil, fmt.Errorf("decode form metadata: %w", err)
	}
	if s.Version != StateVersion {
		return nil, fmt.Errorf("form metadata version %d is not %d", s.Version, StateVersion)
	}
	return &s, nil
}

// Encode serializes the state for the form's private metadata.
func (s *FormState) Encode() string {
	raw, err := json.Marshal(s)
	if err != nil {
		// FormState contains only marshalable fields; this is unreachable
		// short of memory corruption.
		return ""
	}
	return string(raw)
}

// SetForceRegion stores a region constraint. Price and throughput figures
// are region-dependent, so the current instance selection is invalidated
// together with them.
func (s *FormState) SetForceRegion(region string) {
	s.ForceRegion = region
	s.SelectedInstance = ""
}

// ApplyInstancePrices stores a fresh ideal-instance snapshot and folds its
// prices into the derived display figures.
func (s *FormState) ApplyInstancePrices(prices pricing.InstancePrices) {
	s.Ideal = prices.IdealByClass
	if s.Instances == nil {
		s.Instances = make(map[string]InstanceDisplay, len(InstanceClasses))
	}
	for _, class := range InstanceClasses {
		display := s.Instances[class]
		display.Price = s.Ideal[class].Price
		s.Instances[class] = display
	}
}

// ApplyHashPricing folds a hash-type pricing lookup into the derived display
// figures.
func (s *FormState) ApplyHashPricing(byClass map[string]pricing.HashPricing) {
	if s.Instances == nil {
		s.Instances = make(map[string]InstanceDisplay, len(InstanceClasses))
	}
	for _, class := range InstanceClasses {
		display := s.Instances[class]
		hp, ok := byClass[class]
		if !ok {
			display.Hashes = pricing.UnknownMetric()
			display.HashPrice = pricing.UnknownMetric()
		} else {
			if hp.Price > 0 {
				display.Price = hp.Price
			}
			display.Hashes = hp.Hashes
			display.HashPrice = hp.HashPrice
		}
		s.Instances[class] = display
	}
}

// SelectedPrice returns the hourly price of the selected class, zero when no
// class is selected or no snapshot is loaded.
func (s *FormState) SelectedPrice() float64 {
	if s.SelectedInstance == "" {
		return 0
	}
	return s.Ideal[s.SelectedInstance].Price
}
