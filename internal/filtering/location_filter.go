package filtering

import (
	"context"
	"strings"

	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

type locationFilter struct {
	location string
}

// NewLocation creates a filter keeping opportunities whose location and the
// requested location contain one another, ignoring case.
func NewLocation(location string) Filter {
	return &locationFilter{location: strings.TrimSpace(location)}
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) Disable(string) { f.location = "" }

func (f *locationFilter) IsEnabled() bool { return f.location != "" }

func (f *locationFilter) Validate() error { return nil }

func (f *locationFilter) Apply(_ context.Context, v *opportunity.Opportunities) (*opportunity.Opportunities, Step, error) {
	next, step := keep(v, func(o *opportunity.Opportunity) bool {
		return LocationMatches(o.Location, f.location)
	})
	return next, step, nil
}

func (f *locationFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"location": f.location}}
}

// LocationMatches reports whether a and b contain one another, ignoring case.
// Blank values never match.
func LocationMatches(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
