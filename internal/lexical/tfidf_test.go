package lexical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "a an to", want: []string{}},
		{in: "Accountant, Windhoek!", want: []string{"accountant", "windhoek"}},
		{in: "IT jobs -- jobs in WHK", want: []string{"jobs", "jobs", "whk"}},
		{in: "C++/Go developer (remote)", want: []string{"developer", "remote"}},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := Tokenize(tc.in)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTermFrequencyIsNormalisedByLength(t *testing.T) {
	tf := termFrequency([]string{"nurse", "nurse", "windhoek", "clinic"})

	assert.InDelta(t, 0.5, tf["nurse"], 1e-9)
	assert.InDelta(t, 0.25, tf["clinic"], 1e-9)
	assert.Empty(t, termFrequency(nil))
}

func TestInverseDocumentFrequency(t *testing.T) {
	idf := inverseDocumentFrequency([]vector{
		{"nurse": 1, "clinic": 1},
		{"nurse": 1},
		{"driver": 1},
	})

	assert.InDelta(t, math.Log(3.0/2.0), idf["nurse"], 1e-9)
	assert.InDelta(t, math.Log(3.0), idf["driver"], 1e-9)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine(vector{"a": 1, "b": 2}, vector{"a": 2, "b": 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine(vector{"a": 1}, vector{"b": 1}), 1e-9)
	assert.Equal(t, 0.0, cosine(vector{}, vector{"b": 1}))
	assert.Equal(t, 0.0, cosine(vector{"a": 0}, vector{"a": 1}))
}
