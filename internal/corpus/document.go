package corpus

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

// ScraperStat is the per-scraper summary written by a scrape run.
type ScraperStat struct {
	Count    int     `json:"count" mapstructure:"count"`
	Duration float64 `json:"duration" mapstructure:"duration"`
}

// Document is the decoded content of a backing store.
type Document struct {
	LastUpdated   string                    `json:"last_updated" mapstructure:"last_updated"`
	TotalCount    int                       `json:"total_count" mapstructure:"total_count"`
	Sources       []string                  `json:"sources" mapstructure:"sources"`
	ScraperStats  map[string]ScraperStat    `json:"scraper_stats" mapstructure:"scraper_stats"`
	Opportunities []opportunity.Opportunity `json:"opportunities" mapstructure:"opportunities"`
}

// Decode parses the store payload. Both the envelope written by the scrape
// run and a bare array of records are accepted. Every record is normalized.
func Decode(raw []byte) (*Document, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("unmarshal corpus: %w", err)
	}

	doc := &Document{}
	var target any = doc
	switch generic.(type) {
	case map[string]any:
	case []any:
		target = &doc.Opportunities
	default:
		return nil, fmt.Errorf("unexpected corpus payload of type %T", generic)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	for i := range doc.Opportunities {
		doc.Opportunities[i] = opportunity.Normalize(doc.Opportunities[i])
	}
	if doc.TotalCount == 0 {
		doc.TotalCount = len(doc.Opportunities)
	}
	return doc, nil
}
