package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"muhasibi/pkg/common"
)

const chunkColumns = `id, entity_id, entity_kind, kind, text_ar, source_doc_id, source_anchor, COALESCE(refs, '[]')`

// LookupByEntity returns an entity's chunks: the definition chunk first,
// then evidence, then commentary, each in stable ID order, up to limit.
func (s *CorpusStore) LookupByEntity(ctx context.Context, entityID string, limit int) ([]common.Chunk, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM chunk
		WHERE entity_id = $1
		ORDER BY CASE kind
			WHEN 'definition' THEN 0
			WHEN 'evidence' THEN 1
			ELSE 2
		END, id
		LIMIT $2
	`, chunkColumns), entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("lookup by entity: %w", err)
	}
	defer rows.Close()

	var out []common.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChunk fetches a single chunk by ID.
func (s *CorpusStore) GetChunk(ctx context.Context, chunkID string) (common.Chunk, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM chunk
		WHERE id = $1
	`, chunkColumns), chunkID)
	if err != nil {
		return common.Chunk{}, fmt.Errorf("get chunk: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return common.Chunk{}, err
		}
		return common.Chunk{}, fmt.Errorf("chunk %s not found", chunkID)
	}
	return scanChunk(rows)
}

type chunkRow interface {
	Scan(dest ...any) error
}

func scanChunk(row chunkRow) (common.Chunk, error) {
	var c common.Chunk
	var entityKind, kind string
	var refsJSON []byte
	if err := row.Scan(&c.ID, &c.EntityID, &entityKind, &kind, &c.TextAr, &c.SourceDocID, &c.SourceAnchor, &refsJSON); err != nil {
		return common.Chunk{}, err
	}
	c.EntityKind = common.EntityKind(entityKind)
	c.Kind = common.ChunkKind(kind)
	if err := decodeRefs(refsJSON, &c); err != nil {
		return common.Chunk{}, err
	}
	return c, nil
}

func decodeRefs(refsJSON []byte, c *common.Chunk) error {
	if len(refsJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(refsJSON, &c.Refs); err != nil {
		return fmt.Errorf("decode chunk refs: %w", err)
	}
	return nil
}
