package pricing

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Instance is the cheapest acceptable spot instance of one compute class.
type Instance struct {
	InstanceType     string  `json:"instanceType"`
	Price            float64 `json:"price"`
	AvailabilityZone string  `json:"availabilityZone"`
}

// InstancePrices is the backend's per-class ideal-instance snapshot.
type InstancePrices struct {
	IdealByClass map[string]Instance `json:"idealInstanceByClass"`
}

// Metric is a numeric figure the backend may report as the sentinel "-"
// (or "?") meaning "unknown for this combination".
type Metric struct {
	value float64
	known bool
}

func KnownMetric(v float64) Metric {
	return Metric{value: v, known: true}
}

func UnknownMetric() Metric {
	return Metric{}
}

// Known reports whether the figure carries a usable value.
func (m Metric) Known() bool { return m.known }

// Value returns the figure, zero when unknown.
func (m Metric) Value() float64 { return m.value }

func (m *Metric) UnmarshalJSON(raw []byte) error {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		*m = Metric{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" || str == "-" || str == "?" {
			*m = Metric{}
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			*m = Metric{}
			return nil
		}
		*m = Metric{value: v, known: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*m = Metric{value: v, known: true}
	return nil
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.known {
		return []byte(`"-"`), nil
	}
	return json.Marshal(m.value)
}

// HashPricing is one compute class's price and derived hash throughput for a
// specific hash type.
type HashPricing struct {
	Price     float64 `json:"price"`
	Hashes    Metric  `json:"hashes"`
	HashPrice Metric  `json:"hashPrice"`
}
