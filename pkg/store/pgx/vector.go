package pgx

import (
	"context"
	"fmt"

	"muhasibi/pkg/common"
	"muhasibi/pkg/store"

	"github.com/pgvector/pgvector-go"
)

// VectorSearch returns the chunks nearest to the embedding by cosine
// distance, best first. Ties are broken by chunk ID so results are
// reproducible.
func (s *CorpusStore) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]store.ScoredChunk, error) {
	if limit <= 0 {
		limit = 10
	}
	embed := pgvector.NewVector(embedding)

	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS similarity
		FROM chunk
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, chunkColumns), embed, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []store.ScoredChunk
	for rows.Next() {
		var c common.Chunk
		var entityKind, kind string
		var refsJSON []byte
		var score float64
		if err := rows.Scan(&c.ID, &c.EntityID, &entityKind, &kind, &c.TextAr, &c.SourceDocID, &c.SourceAnchor, &refsJSON, &score); err != nil {
			return nil, err
		}
		c.EntityKind = common.EntityKind(entityKind)
		c.Kind = common.ChunkKind(kind)
		if len(refsJSON) > 0 {
			if err := decodeRefs(refsJSON, &c); err != nil {
				return nil, err
			}
		}
		out = append(out, store.ScoredChunk{Chunk: c, Score: score})
	}
	return out, rows.Err()
}
