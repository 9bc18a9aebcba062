package engine

import (
	"time"

	"muhasibi/internal/util"
	"muhasibi/pkg/common"
	"muhasibi/pkg/retrieve"
)

// Config enumerates every engine option. All values come from the
// environment; defaults follow the documented configuration surface.
type Config struct {
	Retrieval retrieve.Config

	// MinKeywordMatch is the number of question keywords that must appear
	// in retrieved evidence for the relevance check to pass.
	MinKeywordMatch int

	// FiqhMarkers and WorshipTerms drive the fiqh-ruling scope gate. A
	// question refuses only when it hits both sets.
	FiqhMarkers  []string
	WorshipTerms []string

	// SpanOverlapThreshold is the minimum token-overlap ratio for an
	// approximate citation span.
	SpanOverlapThreshold float64

	// MaxQuoteWords bounds citation quotes for UI highlighting.
	MaxQuoteWords int

	RetrievalTimeout time.Duration
	ModelTimeout     time.Duration
	TotalTimeout     time.Duration

	DefaultMode common.Mode

	// RerankerEnabled is parsed for compatibility and intentionally
	// ignored: hybrid-merge ordering is authoritative.
	RerankerEnabled bool
}

// DefaultFiqhMarkers is the fixed marker set of the fiqh scope gate.
func DefaultFiqhMarkers() []string {
	return []string{"ما حكم", "حكم", "يجوز", "لا يجوز", "حلال", "حرام", "مباح", "مكروه", "سنة", "فرض", "واجب", "مندوب", "بدعة"}
}

// DefaultWorshipTerms is the fixed worship/ritual term set of the fiqh
// scope gate.
func DefaultWorshipTerms() []string {
	return []string{"صيام", "صوم", "صلاة", "زكاة", "حج", "عمرة", "الجمعة"}
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Retrieval:            retrieve.DefaultConfig(),
		MinKeywordMatch:      1,
		FiqhMarkers:          DefaultFiqhMarkers(),
		WorshipTerms:         DefaultWorshipTerms(),
		SpanOverlapThreshold: 0.6,
		MaxQuoteWords:        25,
		RetrievalTimeout:     2 * time.Second,
		ModelTimeout:         20 * time.Second,
		TotalTimeout:         30 * time.Second,
		DefaultMode:          common.ModeAnswer,
	}
}

// ConfigFromEnv reads the engine configuration from the environment,
// falling back to the documented defaults.
func ConfigFromEnv() Config {
	c := DefaultConfig()

	c.Retrieval.EntityTopK = int(util.GetEnvNumeric("RETRIEVAL_ENTITY_TOPK", c.Retrieval.EntityTopK))
	c.Retrieval.VectorTopK = int(util.GetEnvNumeric("RETRIEVAL_VECTOR_TOPK", c.Retrieval.VectorTopK))
	c.Retrieval.GraphDepth = int(util.GetEnvNumeric("RETRIEVAL_GRAPH_DEPTH", c.Retrieval.GraphDepth))
	c.Retrieval.RewriteThreshold = int(util.GetEnvNumeric("RETRIEVAL_REWRITE_THRESHOLD", c.Retrieval.RewriteThreshold))
	c.Retrieval.MaxPackets = int(util.GetEnvNumeric("RETRIEVAL_MAX_PACKETS", c.Retrieval.MaxPackets))
	c.Retrieval.WeightEntity = util.GetEnvNumeric("RETRIEVAL_WEIGHT_ENTITY", int(c.Retrieval.WeightEntity))
	c.Retrieval.WeightVector = util.GetEnvNumeric("RETRIEVAL_WEIGHT_VECTOR", int(c.Retrieval.WeightVector))
	c.Retrieval.WeightGraph = util.GetEnvNumeric("RETRIEVAL_WEIGHT_GRAPH", int(c.Retrieval.WeightGraph))

	c.MinKeywordMatch = int(util.GetEnvNumeric("ACCOUNT_MIN_KEYWORD_MATCH", c.MinKeywordMatch))

	c.RetrievalTimeout = time.Duration(util.GetEnvNumeric("TIMEOUT_RETRIEVAL_MS", int(c.RetrievalTimeout.Milliseconds()))) * time.Millisecond
	c.ModelTimeout = time.Duration(util.GetEnvNumeric("TIMEOUT_MODEL_MS", int(c.ModelTimeout.Milliseconds()))) * time.Millisecond
	c.TotalTimeout = time.Duration(util.GetEnvNumeric("TIMEOUT_TOTAL_MS", int(c.TotalTimeout.Milliseconds()))) * time.Millisecond

	if mode := common.Mode(util.GetEnvString("MODE_DEFAULT", string(c.DefaultMode))); mode.Valid() {
		c.DefaultMode = mode
	}

	c.RerankerEnabled = util.GetEnvBool("RERANKER_ENABLED", false)

	return c
}
