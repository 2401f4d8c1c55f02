package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

type excludedSourcesFilter struct {
	sources []string
	logger  *zap.Logger
}

// NewExcludedSources creates a filter that removes records coming from
// non-authoritative sources such as demo scrapers.
func NewExcludedSources(sources []string, logger *zap.Logger) Filter {
	cleaned := make([]string, 0, len(sources))
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludedSourcesFilter{sources: cleaned, logger: logger}
}

func (f *excludedSourcesFilter) Name() string { return "excluded_sources" }

func (f *excludedSourcesFilter) Disable(string) { f.sources = nil }

func (f *excludedSourcesFilter) IsEnabled() bool { return len(f.sources) > 0 }

func (f *excludedSourcesFilter) Validate() error { return nil }

func (f *excludedSourcesFilter) Apply(_ context.Context, v *opportunity.Opportunities) (*opportunity.Opportunities, Step, error) {
	initial := v.Len()
	next := &opportunity.Opportunities{Items: v.Items}
	excluded := next.Exclude(opportunity.SourceField, f.sources)
	if len(excluded) > 0 {
		f.logger.Info("excluding opportunities from non-authoritative sources",
			zap.Strings("sources", f.sources),
			zap.Int("excluded", len(excluded)),
			zap.Int("opportunities_left", next.Len()),
		)
	}
	return next, Step{Initial: initial, Dropped: len(excluded), Left: next.Len()}, nil
}

func (f *excludedSourcesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"sources": strings.Join(f.sources, ",")}}
}

type validFilter struct{}

// NewValid creates a filter that removes records missing a title or source.
func NewValid() Filter {
	return &validFilter{}
}

func (f *validFilter) Name() string { return "valid" }

func (f *validFilter) Disable(string) {}

func (f *validFilter) IsEnabled() bool { return true }

func (f *validFilter) Validate() error { return nil }

func (f *validFilter) Apply(_ context.Context, v *opportunity.Opportunities) (*opportunity.Opportunities, Step, error) {
	next, step := keep(v, func(o *opportunity.Opportunity) bool {
		return opportunity.IsValid(*o)
	})
	return next, step, nil
}
