package rerank

import "math"

// Blend combines the relevance score (0..100) with the lexical score
// (roughly 0..2) into the final ranking score.
//
//	final = relevance^Exponent * RelevanceWeight + lexical * LexicalWeight
type Blend struct {
	Exponent        float64 `mapstructure:"exponent"`
	RelevanceWeight float64 `mapstructure:"relevance-weight"`
	LexicalWeight   float64 `mapstructure:"lexical-weight"`
}

func DefaultBlend() Blend {
	return Blend{Exponent: 1.1, RelevanceWeight: 0.75, LexicalWeight: 0.25}
}

func (b Blend) Combine(relevance, lexical float64) float64 {
	return math.Pow(relevance, b.Exponent)*b.RelevanceWeight + lexical*b.LexicalWeight
}

func (b Blend) isZero() bool {
	return b == Blend{}
}
