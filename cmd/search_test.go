package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youthguide-na/opportunity-finder/internal/corpus"
	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
	"github.com/youthguide-na/opportunity-finder/internal/retrieval"
)

func newTestSearchCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	addSearchFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestSearchOptionsFromFlags(t *testing.T) {
	cmd := newTestSearchCmd(t,
		"--top-k", "3",
		"--type", "training,Internship",
		"--location", "Windhoek",
		"--skills", "excel, bookkeeping",
		"--preferred-types", "Job",
	)

	opts := searchOptions(cmd, &Config{})

	assert.Equal(t, 3, opts.TopK)
	assert.Equal(t, []opportunity.Type{opportunity.TypeTraining, opportunity.TypeInternship}, opts.FilterTypes)
	assert.Equal(t, "Windhoek", opts.FilterLocation)
	require.NotNil(t, opts.Profile)
	assert.Equal(t, []string{"excel", "bookkeeping"}, opts.Profile.Skills)
	assert.Equal(t, []string{"Job"}, opts.Profile.PreferredTypes)
}

func TestSearchOptionsFlagsOverrideConfigProfile(t *testing.T) {
	cmd := newTestSearchCmd(t, "--profile-location", "Rundu")
	config := &Config{Profile: &opportunity.Profile{Location: "Windhoek", Interests: []string{"health"}}}

	opts := searchOptions(cmd, config)

	require.NotNil(t, opts.Profile)
	assert.Equal(t, "Rundu", opts.Profile.Location)
	assert.Equal(t, []string{"health"}, opts.Profile.Interests)
	assert.Equal(t, "Windhoek", config.Profile.Location)
}

func TestSearchOptionsWithoutProfile(t *testing.T) {
	opts := searchOptions(newTestSearchCmd(t, "--type", "gig"), &Config{})

	assert.Nil(t, opts.Profile)
	assert.Equal(t, []opportunity.Type{"gig"}, opts.FilterTypes)
}

func sampleResult() *retrieval.Result {
	return &retrieval.Result{
		Opportunities: []opportunity.Ranked{{
			Opportunity:    opportunity.Opportunity{ID: "a1", Title: "Junior Accountant", Organization: "FNB", Location: "Windhoek", Type: opportunity.TypeJob},
			Score:          88.4,
			RelevanceScore: 80,
			FinalScore:     88.4,
		}},
		UsedAI:     true,
		DataSource: string(corpus.Primary),
	}
}

func TestPrintResultTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, sampleResult(), outputTable))

	out := buf.String()
	assert.Contains(t, out, "source: primary")
	assert.Contains(t, out, "ai: true")
	assert.Contains(t, out, "Junior Accountant")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "1"))
	assert.Contains(t, lines[len(lines)-1], "80")
}

func TestPrintResultEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, &retrieval.Result{Opportunities: []opportunity.Ranked{}}, outputTable))

	assert.Contains(t, buf.String(), "No matching opportunities.")
}

func TestPrintResultJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, sampleResult(), outputJSON))

	var envelope struct {
		Opportunities []map[string]any `json:"opportunities"`
		IsOffline     bool             `json:"isOffline"`
		UsedAI        bool             `json:"usedAI"`
		DataSource    string           `json:"dataSource"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))
	assert.True(t, envelope.UsedAI)
	assert.Equal(t, "primary", envelope.DataSource)
	require.Len(t, envelope.Opportunities, 1)
	assert.Equal(t, "a1", envelope.Opportunities[0]["id"])
	assert.Equal(t, 80.0, envelope.Opportunities[0]["aiScore"])
}

func TestBuildStores(t *testing.T) {
	primary, fallback, err := buildStores(&Config{Data: &DataConfig{
		PrimaryFile:  "data/opportunities.json",
		FallbackFile: "data/mock-opportunities.json",
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "file:data/opportunities.json", primary.Name())
	assert.Equal(t, "file:data/mock-opportunities.json", fallback.Name())

	_, _, err = buildStores(&Config{}, nil)
	assert.Error(t, err)
}

func TestNewGeneratorRejectsUnknownProvider(t *testing.T) {
	_, err := newGenerator(t.Context(), &AIConfig{Provider: "cohere"}, nil)
	assert.ErrorContains(t, err, "unsupported ai provider")
}
