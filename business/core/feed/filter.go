package feed

import "github.com/ardanlabs/blockfeed/foundation/validate"

// Filter narrows a list of events. Zero values match everything.
type Filter struct {
	Chain    string `json:"chain" validate:"omitempty,chain"`
	Category string `json:"category" validate:"omitempty,category"`
	Limit    int    `json:"limit" validate:"gte=0,lte=500"`
}

// Validate checks the filter values are recognized.
func (f Filter) Validate() error {
	return validate.Check(f)
}

// Apply returns the events that match the filter, preserving order.
func (f Filter) Apply(evts []Event) []Event {
	out := make([]Event, 0, len(evts))
	for _, evt := range evts {
		if f.Chain != "" && evt.Chain != f.Chain {
			continue
		}
		if f.Category != "" && evt.Category != f.Category {
			continue
		}

		out = append(out, evt)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}

	return out
}
