package domain

// NotFoundContext replaces the retrieval context when any top-k hit falls below the score threshold.
const NotFoundContext = "answer not found in text, please ask a valid question from the docs"

// CosineScore maps a cosine similarity in [-1, 1] onto the OpenSearch cosinesimil score 1/(2-cos),
// which lies in [1/3, 1]. Every VectorIndex reports Hit.Score on this scale, so RAG_SCORE_THRESHOLD
// means the same thing for each backend.
func CosineScore(cos float64) float64 {
	return 1 / (2 - cos)
}

// Hit is one nearest-neighbor match in index-native order.
type Hit struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// RetrievalContext is the outcome of a retrieval: the assembled passages, or the not-found sentinel.
type RetrievalContext struct {
	Text  string `json:"text"`
	Found bool   `json:"found"`
	Hits  []Hit  `json:"hits,omitempty"`
	// LastSource is the source of the last hit appended to Text.
	LastSource string `json:"last_source,omitempty"`
}

// Empty reports an accepted retrieval that carries no passages (k = 0).
func (c RetrievalContext) Empty() bool {
	return c.Found && len(c.Hits) == 0
}

// GenerationParams are the fixed sampling settings sent with every answer prompt.
type GenerationParams struct {
	MaxTokens     int      `json:"max_tokens"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	TopK          int      `json:"top_k"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type Answer struct {
	ResponseText      string `json:"response_text"`
	ReferenceDocument string `json:"reference_document"`
	// Grounded is false when the answer was produced without accepted passages.
	Grounded bool `json:"-"`
}
