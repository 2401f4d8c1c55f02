package lexical

import (
	"strings"
	"time"

	"github.com/youthguide-na/opportunity-finder/internal/filtering"
	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

const (
	locationBoost      = 0.3
	termBoost          = 0.2
	preferredTypeBoost = 0.15
	freshBoost         = 0.1
	recentBoost        = 0.05
)

// ProfileBoost is the multiplicative relevance factor of o for profile.
// It starts at 1 and is raised for a matching location, for every skill or
// interest found in the record text, for a preferred type and for recent
// postings.
func ProfileBoost(o *opportunity.Opportunity, profile *opportunity.Profile, now time.Time) float64 {
	boost := 1.0

	if profile != nil {
		if filtering.LocationMatches(profile.Location, o.Location) {
			boost += locationBoost
		}
		text := o.SearchText()
		for _, term := range profile.Terms() {
			if strings.Contains(text, term) {
				boost += termBoost
			}
		}
		if profile.Prefers(o.Type) {
			boost += preferredTypeBoost
		}
	}

	if age, ok := o.AgeDays(now); ok {
		switch {
		case age < 7:
			boost += freshBoost
		case age < 30:
			boost += recentBoost
		}
	}
	return boost
}

// RecencyTier is the base score of a candidate for a generic query.
// Undated records fall in the lowest tier.
func RecencyTier(o *opportunity.Opportunity, now time.Time) float64 {
	age, ok := o.AgeDays(now)
	if !ok {
		return 0.05
	}
	switch {
	case age < 7:
		return 0.20
	case age < 30:
		return 0.15
	case age < 90:
		return 0.10
	default:
		return 0.05
	}
}
