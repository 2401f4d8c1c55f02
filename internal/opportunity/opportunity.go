package opportunity

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Type is the category of an opportunity.
type Type string

const (
	TypeJob         Type = "Job"
	TypeTraining    Type = "Training"
	TypeInternship  Type = "Internship"
	TypeScholarship Type = "Scholarship"
)

// Types lists every known opportunity type.
var Types = []Type{TypeJob, TypeTraining, TypeInternship, TypeScholarship}

// ParseType matches s case-insensitively against the known types.
func ParseType(s string) (Type, bool) {
	s = strings.TrimSpace(s)
	for _, t := range Types {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

const (
	IDField           = "ID"
	SourceField       = "Source"
	OrganizationField = "Organization"
)

const dateLayout = "2006-01-02"

// Opportunity is a single record of the corpus. Records are treated as
// immutable once a snapshot has been loaded.
type Opportunity struct {
	ID           string `json:"id" mapstructure:"id"`
	Title        string `json:"title" mapstructure:"title"`
	Description  string `json:"description" mapstructure:"description"`
	Organization string `json:"organization" mapstructure:"organization"`
	Location     string `json:"location" mapstructure:"location"`
	Type         Type   `json:"type" mapstructure:"type"`
	Source       string `json:"source" mapstructure:"source"`
	URL          string `json:"url,omitempty" mapstructure:"url"`
	DatePosted   string `json:"date_posted,omitempty" mapstructure:"date_posted"`
	Verified     bool   `json:"verified,omitempty" mapstructure:"verified"`
}

// PostedAt parses DatePosted. The second return value is false when the
// date is absent or not in a recognised format.
func (o *Opportunity) PostedAt() (time.Time, bool) {
	raw := strings.TrimSpace(o.DatePosted)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{dateLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AgeDays returns the fractional number of days between posting and now.
func (o *Opportunity) AgeDays(now time.Time) (float64, bool) {
	posted, ok := o.PostedAt()
	if !ok {
		return 0, false
	}
	return now.Sub(posted).Hours() / 24, true
}

// SearchText is the lowercased concatenation of every descriptive field.
func (o *Opportunity) SearchText() string {
	return strings.ToLower(strings.Join([]string{
		o.Title, o.Description, o.Organization, o.Source, o.Location, string(o.Type),
	}, " "))
}

func (o *Opportunity) GetStringField(name string) string {
	switch name {
	case IDField:
		return o.ID
	case SourceField:
		return o.Source
	case OrganizationField:
		return o.Organization
	default:
		return ""
	}
}

type Opportunities struct {
	Items []Opportunity
}

func (v *Opportunities) Len() int {
	return len(v.Items)
}

func (v *Opportunities) FindByID(id string) *Opportunity {
	for i := range v.Items {
		if v.Items[i].ID == id {
			return &v.Items[i]
		}
	}
	return nil
}

// Exclude drops every record whose field equals one of targets and returns
// the ids of the dropped records. Order of the remaining records is kept.
func (v *Opportunities) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}

	var excluded []string
	kept := v.Items[:0:0]
	for _, o := range v.Items {
		if _, ok := set[o.GetStringField(name)]; ok {
			excluded = append(excluded, o.ID)
			continue
		}
		kept = append(kept, o)
	}
	v.Items = kept
	return excluded
}

// ReportByType groups a short summary of every record by its type.
func (v *Opportunities) ReportByType() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, o := range v.Items {
		key := string(o.Type)
		report[key] = append(report[key], map[string]string{
			"id":           o.ID,
			"title":        o.Title,
			"organization": o.Organization,
			"location":     o.Location,
			"posted":       o.DatePosted,
			"url":          o.URL,
		})
	}
	return report
}

func (v *Opportunities) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "opportunities_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v.Items); err != nil {
		return "", fmt.Errorf("encode opportunities: %w", err)
	}
	return file.Name(), nil
}
