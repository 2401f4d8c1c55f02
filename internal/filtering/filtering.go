package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

// Filter represents a single filtering step applied to opportunities.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, v *opportunity.Opportunities) (*opportunity.Opportunities, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

type Filtering struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, logger *zap.Logger) *Filtering {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filtering{steps: steps, logger: logger}
}

// RunFilters executes the enabled steps sequentially. The input list is never
// modified in place; every step works on its own copy of the items slice.
func (f *Filtering) RunFilters(ctx context.Context, v *opportunity.Opportunities) (*opportunity.Opportunities, error) {
	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}

		next, info, err := step.Apply(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		f.logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		v = next
		if v.Len() == 0 {
			break
		}
	}

	return v, nil
}

// Describe returns status entries for the configured filters.
func (f *Filtering) Describe() []Status {
	statuses := make([]Status, 0, len(f.steps))
	for _, step := range f.steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

func keep(v *opportunity.Opportunities, pred func(o *opportunity.Opportunity) bool) (*opportunity.Opportunities, Step) {
	initial := v.Len()
	kept := make([]opportunity.Opportunity, 0, initial)
	for i := range v.Items {
		if pred(&v.Items[i]) {
			kept = append(kept, v.Items[i])
		}
	}
	return &opportunity.Opportunities{Items: kept}, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}
}
