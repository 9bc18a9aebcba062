package pgx

import (
	"context"
	"fmt"
	"sort"

	"muhasibi/pkg/common"
	"muhasibi/pkg/store"
)

type edgeRow struct {
	EdgeID   string
	Relation string
	FromID   string
	ToID     string
}

// ExpandGraph traverses approved edges breadth-first from the given
// entities up to depth. For every crossed edge it emits the neighbor's
// definition chunk and the chunks holding the edge's justification spans.
// Edges without at least one justification span never qualify: the join
// below requires one, which enforces the no-span-no-edge invariant at the
// retrieval boundary.
func (s *CorpusStore) ExpandGraph(ctx context.Context, entityIDs []string, depth int) ([]store.GraphHit, error) {
	if len(entityIDs) == 0 || depth <= 0 {
		return nil, nil
	}

	visited := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		visited[id] = struct{}{}
	}

	frontier := append([]string(nil), entityIDs...)
	var hits []store.GraphHit

	for d := 1; d <= depth && len(frontier) > 0; d++ {
		edges, err := s.edgesFrom(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []string
		for _, e := range edges {
			spans, err := s.GetEdgeEvidence(ctx, e.EdgeID)
			if err != nil {
				return nil, err
			}
			if len(spans) == 0 {
				continue
			}

			info := common.EdgeInfo{
				EdgeID:   e.EdgeID,
				Relation: common.RelationLabel(e.Relation),
				FromID:   e.FromID,
				ToID:     e.ToID,
				Depth:    d,
				Spans:    spans,
			}

			neighbor := e.ToID
			if _, seen := visited[neighbor]; !seen {
				visited[neighbor] = struct{}{}
				next = append(next, neighbor)

				defs, err := s.LookupByEntity(ctx, neighbor, 1)
				if err != nil {
					return nil, err
				}
				if len(defs) > 0 && defs[0].Kind == common.ChunkDefinition {
					hits = append(hits, store.GraphHit{Chunk: defs[0], Edge: info})
				}
			}

			for _, sp := range spans {
				chunk, err := s.GetChunk(ctx, sp.ChunkID)
				if err != nil {
					continue
				}
				hits = append(hits, store.GraphHit{Chunk: chunk, Edge: info})
			}
		}
		frontier = next
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Edge.Depth != hits[j].Edge.Depth {
			return hits[i].Edge.Depth < hits[j].Edge.Depth
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	return hits, nil
}

// edgesFrom returns approved outgoing and incoming edges touching the given
// entities, oriented so ToID is always the neighbor.
func (s *CorpusStore) edgesFrom(ctx context.Context, entityIDs []string) ([]edgeRow, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, relation, from_id, to_id
		FROM edge
		WHERE status = 'approved' AND from_id = ANY($1)
		UNION
		SELECT id, relation, to_id AS from_id, from_id AS to_id
		FROM edge
		WHERE status = 'approved' AND to_id = ANY($1)
		ORDER BY id
	`, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("expand graph: %w", err)
	}
	defer rows.Close()

	var out []edgeRow
	for rows.Next() {
		var e edgeRow
		if err := rows.Scan(&e.EdgeID, &e.Relation, &e.FromID, &e.ToID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEdgeEvidence returns the justification spans of an edge in stable
// (chunk, offset) order.
func (s *CorpusStore) GetEdgeEvidence(ctx context.Context, edgeID string) ([]common.JustificationSpan, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT chunk_id, span_start, span_end, quote
		FROM edge_justification_span
		WHERE edge_id = $1
		ORDER BY chunk_id, span_start
	`, edgeID)
	if err != nil {
		return nil, fmt.Errorf("edge evidence: %w", err)
	}
	defer rows.Close()

	var out []common.JustificationSpan
	for rows.Next() {
		var sp common.JustificationSpan
		if err := rows.Scan(&sp.ChunkID, &sp.Start, &sp.End, &sp.Quote); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}
