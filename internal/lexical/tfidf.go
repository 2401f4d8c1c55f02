package lexical

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTokenLength = 3

// Tokenize lowercases s, replaces punctuation with spaces and drops tokens
// shorter than three characters. Repeated tokens are kept.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

type vector map[string]float64

// termFrequency counts every token and divides by the document length.
func termFrequency(tokens []string) vector {
	tf := make(vector, len(tokens))
	if len(tokens) == 0 {
		return tf
	}
	for _, tok := range tokens {
		tf[tok]++
	}
	n := float64(len(tokens))
	for term := range tf {
		tf[term] /= n
	}
	return tf
}

// inverseDocumentFrequency computes ln(total/df) over docs.
func inverseDocumentFrequency(docs []vector) vector {
	df := make(map[string]int)
	for _, doc := range docs {
		for term := range doc {
			df[term]++
		}
	}
	total := float64(len(docs))
	idf := make(vector, len(df))
	for term, n := range df {
		idf[term] = math.Log(total / float64(n))
	}
	return idf
}

func weigh(tf, idf vector) vector {
	out := make(vector, len(tf))
	for term, f := range tf {
		out[term] = f * idf[term]
	}
	return out
}

// cosine is the cosine similarity of a and b. Terms missing from one side
// contribute zero. Zero vectors have similarity 0.
func cosine(a, b vector) float64 {
	var dot, normA, normB float64
	for term, wa := range a {
		normA += wa * wa
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
