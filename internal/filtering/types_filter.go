package filtering

import (
	"context"
	"fmt"
	"strings"

	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

type typesFilter struct {
	enabled bool
	reason  string
	types   []opportunity.Type
}

// NewTypes creates a filter that keeps only opportunities of the given types.
// The filter is disabled when no types are given.
func NewTypes(types []opportunity.Type) Filter {
	return &typesFilter{
		enabled: len(types) > 0,
		types:   types,
	}
}

func (f *typesFilter) Name() string { return "types" }

func (f *typesFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *typesFilter) IsEnabled() bool { return f.enabled }

func (f *typesFilter) Validate() error {
	for _, t := range f.types {
		if _, ok := opportunity.ParseType(string(t)); !ok {
			return fmt.Errorf("unknown opportunity type %q", t)
		}
	}
	return nil
}

func (f *typesFilter) Apply(_ context.Context, v *opportunity.Opportunities) (*opportunity.Opportunities, Step, error) {
	next, step := keep(v, func(o *opportunity.Opportunity) bool {
		for _, t := range f.types {
			if o.Type == t {
				return true
			}
		}
		return false
	})
	return next, step, nil
}

func (f *typesFilter) Status() Status {
	names := make([]string, 0, len(f.types))
	for _, t := range f.types {
		names = append(names, string(t))
	}
	return Status{
		Name:    f.Name(),
		Enabled: f.enabled,
		Reason:  f.reason,
		Details: map[string]string{"types": strings.Join(names, ",")},
	}
}
