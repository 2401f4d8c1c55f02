package opportunity

// Debug carries the intermediate values of a single scoring pass.
type Debug struct {
	Generic        bool    `json:"generic,omitempty"`
	SemanticScore  float64 `json:"semanticScore"`
	ProfileBoost   float64 `json:"profileBoost"`
	RecencyTier    float64 `json:"recencyTier,omitempty"`
	TypeMultiplier float64 `json:"typeMultiplier,omitempty"`
	Synthetic      bool    `json:"synthetic,omitempty"`
}

// Ranked is an opportunity annotated with the scores of one retrieval call.
//
// Score is stage dependent: the lexical score after Stage 1 and the blended
// final score after Stage 2. Stage1Score keeps the lexical value unchanged
// once Stage 2 has run. RelevanceScore is on a 0..100 scale.
type Ranked struct {
	Opportunity

	Score          float64 `json:"score"`
	Stage1Score    float64 `json:"stage1Score,omitempty"`
	RelevanceScore float64 `json:"aiScore,omitempty"`
	Reasoning      string  `json:"aiReasoning,omitempty"`
	FinalScore     float64 `json:"finalScore,omitempty"`
	Debug          Debug   `json:"_debug"`
}
