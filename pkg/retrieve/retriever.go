// Package retrieve implements hybrid evidence retrieval: entity-exact
// lookup, vector-nearest search, and graph expansion, merged into a
// deterministic ranked bundle of evidence packets.
package retrieve

import (
	"context"

	"muhasibi/pkg/ai"
	"muhasibi/pkg/common"
	"muhasibi/pkg/logger"
	"muhasibi/pkg/store"

	"golang.org/x/sync/errgroup"
)

// Config holds the retrieval knobs from the configuration surface.
type Config struct {
	EntityTopK       int // chunks fetched per detected entity
	VectorTopK       int // nearest chunks by embedding
	GraphDepth       int // edge traversal depth
	RewriteThreshold int // min distinct vector hits before a rewrite is tried
	MaxPackets       int // cap on the merged bundle

	WeightEntity float64
	WeightVector float64
	WeightGraph  float64
}

// DefaultConfig returns the documented retrieval defaults.
func DefaultConfig() Config {
	return Config{
		EntityTopK:       5,
		VectorTopK:       10,
		GraphDepth:       2,
		RewriteThreshold: 3,
		MaxPackets:       12,
		WeightEntity:     3,
		WeightVector:     1,
		WeightGraph:      1,
	}
}

// Inputs are the LISTEN outputs the retriever consumes.
type Inputs struct {
	NormalizedQuestion string
	Keywords           []string
	Entities           []common.EntityRef
	Intent             string
}

// Result is the merged retrieval outcome.
type Result struct {
	Packets          []common.EvidencePacket
	TotalFound       int
	HasDefinition    bool
	HasEvidence      bool
	RewritesUsed     []string
	DisambiguationAr string
}

// Embedder turns text into a query embedding. *ai.ModelClient satisfies it.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Rewriter produces search rewrites for sparse questions. *ai.ModelClient
// satisfies it.
type Rewriter interface {
	RewriteQuery(ctx context.Context, question string, entities []common.EntityRef, keywords []string) (*ai.RewriteResult, error)
}

// HybridRetriever merges the three retrieval legs. Safe for concurrent use.
type HybridRetriever struct {
	store    store.RetrievalStore
	embedder Embedder
	rewriter Rewriter
	config   Config
}

// NewHybridRetriever builds a retriever. rewriter may be nil to disable
// query rewriting.
func NewHybridRetriever(st store.RetrievalStore, embedder Embedder, rewriter Rewriter, config Config) *HybridRetriever {
	if config.MaxPackets <= 0 {
		config = DefaultConfig()
	}
	return &HybridRetriever{store: st, embedder: embedder, rewriter: rewriter, config: config}
}

// Retrieve runs the hybrid procedure. It never returns an error: any
// collaborator failure degrades to fewer (possibly zero) packets, and the
// ACCOUNT stage turns an empty bundle into a refusal.
func (r *HybridRetriever) Retrieve(ctx context.Context, inputs Inputs) Result {
	legs := r.runLegs(ctx, inputs.NormalizedQuestion, inputs.Entities)

	// Sparse vector hits trigger the rewrite contract: up to 5 Arabic
	// rewrites, no answering. Each rewrite re-runs all three legs.
	var rewritesUsed []string
	var disambiguation string
	if r.rewriter != nil && distinctChunks(legs.vector) < r.config.RewriteThreshold {
		rewrite, err := r.rewriter.RewriteQuery(ctx, inputs.NormalizedQuestion, inputs.Entities, inputs.Keywords)
		if err != nil {
			logger.Debug("Query rewrite unavailable", "err", err)
		} else if rewrite != nil {
			disambiguation = rewrite.DisambiguationAr
			for _, rw := range rewrite.RewritesAr {
				if rw == "" {
					continue
				}
				rewritesUsed = append(rewritesUsed, rw)
				extra := r.runLegs(ctx, rw, inputs.Entities)
				legs.entity = append(legs.entity, extra.entity...)
				legs.vector = append(legs.vector, extra.vector...)
				legs.graph = append(legs.graph, extra.graph...)
			}
		}
	}

	merged := mergeAndRank(legs, r.config)
	merged.RewritesUsed = rewritesUsed
	merged.DisambiguationAr = disambiguation
	return merged
}

type legResults struct {
	entity []entityHit
	vector []store.ScoredChunk
	graph  []store.GraphHit
}

type entityHit struct {
	chunk    common.Chunk
	entityID string
}

// runLegs executes the three retrieval legs concurrently. Each leg fails
// soft: an error empties that leg only.
func (r *HybridRetriever) runLegs(ctx context.Context, question string, entities []common.EntityRef) legResults {
	var legs legResults
	eg, ectx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		for _, e := range entities {
			chunks, err := r.store.LookupByEntity(ectx, e.ID, r.config.EntityTopK)
			if err != nil {
				logger.Debug("Entity lookup failed", "entity", e.ID, "err", err)
				continue
			}
			for _, c := range chunks {
				legs.entity = append(legs.entity, entityHit{chunk: c, entityID: e.ID})
			}
		}
		return nil
	})

	eg.Go(func() error {
		if r.embedder == nil {
			return nil
		}
		embedding, err := r.embedder.GenerateEmbedding(ectx, question)
		if err != nil {
			logger.Debug("Question embedding failed", "err", err)
			return nil
		}
		hits, err := r.store.VectorSearch(ectx, embedding, r.config.VectorTopK)
		if err != nil {
			logger.Debug("Vector search failed", "err", err)
			return nil
		}
		legs.vector = hits
		return nil
	})

	eg.Go(func() error {
		if len(entities) == 0 || r.config.GraphDepth <= 0 {
			return nil
		}
		ids := make([]string, 0, len(entities))
		for _, e := range entities {
			ids = append(ids, e.ID)
		}
		hits, err := r.store.ExpandGraph(ectx, ids, r.config.GraphDepth)
		if err != nil {
			logger.Debug("Graph expansion failed", "err", err)
			return nil
		}
		legs.graph = hits
		return nil
	})

	// Legs never return errors; Wait only observes context cancellation.
	_ = eg.Wait()
	return legs
}

func distinctChunks(hits []store.ScoredChunk) int {
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		seen[h.ID] = struct{}{}
	}
	return len(seen)
}
