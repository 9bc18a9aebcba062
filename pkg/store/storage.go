package store

import (
	"context"
	"time"

	"muhasibi/pkg/common"
)

// ScoredChunk is a chunk returned from vector search with its cosine
// similarity to the query embedding.
type ScoredChunk struct {
	common.Chunk
	Score float64
}

// GraphHit is a chunk surfaced by graph expansion together with the edge
// that led to it.
type GraphHit struct {
	Chunk common.Chunk
	Edge  common.EdgeInfo
}

// RetrievalStore is the read-side interface over the canonical corpus: the
// entity catalog, chunk table, chunk embeddings, and the approved edge
// graph. Implementations must be safe for concurrent use; the catalog and
// graph are treated as an immutable snapshot within a request.
type RetrievalStore interface {
	// LoadCatalog returns the full entity catalog for the resolver snapshot.
	LoadCatalog(ctx context.Context) ([]common.Entity, error)

	// ResolveEntities returns catalog entities whose normalized names match
	// any of the given keywords.
	ResolveEntities(ctx context.Context, keywords []string) ([]common.Entity, error)

	// LookupByEntity returns the entity's definition chunk first, then its
	// evidence and commentary chunks, up to limit.
	LookupByEntity(ctx context.Context, entityID string, limit int) ([]common.Chunk, error)

	// VectorSearch returns the chunks nearest to the embedding by cosine
	// distance, best first.
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]ScoredChunk, error)

	// ExpandGraph traverses approved edges from the given entities up to
	// depth, returning target definition chunks and edge justification-span
	// chunks. Edges without at least one justification span are excluded.
	ExpandGraph(ctx context.Context, entityIDs []string, depth int) ([]GraphHit, error)

	// GetChunk fetches a single chunk by ID.
	GetChunk(ctx context.Context, chunkID string) (common.Chunk, error)

	// GetEdgeEvidence returns the justification spans of an edge.
	GetEdgeEvidence(ctx context.Context, edgeID string) ([]common.JustificationSpan, error)

	// ListChildren returns the direct children of an entity (core values of
	// a pillar, sub-values of a core value) in stable ID order.
	ListChildren(ctx context.Context, parentID string, kind common.EntityKind) ([]common.Entity, error)
}

// RunRecord is the append-only persistence record of one ask run.
type RunRecord struct {
	RequestID      string               `json:"request_id"`
	Question       string               `json:"question"`
	Language       string               `json:"language"`
	Mode           common.Mode          `json:"mode"`
	Response       common.FinalResponse `json:"response"`
	RetrievalTrace []string             `json:"retrieval_trace"`
	StateTrace     []map[string]any     `json:"state_trace"`
	TimingsMs      map[string]int64     `json:"timings_ms"`
	CreatedAt      time.Time            `json:"created_at"`
}

// FeedbackRecord is a user rating of a finished run.
type FeedbackRecord struct {
	RequestID string    `json:"request_id"`
	Rating    int       `json:"rating"` // -1 | 0 | +1
	Tags      []string  `json:"tags,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStore is the append-only persistence surface for run traces and
// feedback. Appends happen off the request hot path.
type RunStore interface {
	AppendRun(ctx context.Context, run RunRecord) error
	AppendFeedback(ctx context.Context, feedback FeedbackRecord) error
	GetRun(ctx context.Context, requestID string) (*RunRecord, error)
}
