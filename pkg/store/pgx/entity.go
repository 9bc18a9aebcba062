package pgx

import (
	"context"
	"fmt"

	"muhasibi/pkg/common"
)

const entityColumns = `id, kind, name_ar, COALESCE(definition_ar, ''), COALESCE(parent_id, ''), COALESCE(source_anchor, '')`

// LoadCatalog returns the full entity catalog in stable ID order.
func (s *CorpusStore) LoadCatalog(ctx context.Context) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM entity
		ORDER BY id
	`, entityColumns))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// ResolveEntities returns entities whose normalized match key equals any of
// the given keywords. The name_key column is populated at ingestion with
// the same normalization the resolver applies at query time.
func (s *CorpusStore) ResolveEntities(ctx context.Context, keywords []string) ([]common.Entity, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM entity
		WHERE name_key = ANY($1)
		ORDER BY id
	`, entityColumns), keywords)
	if err != nil {
		return nil, fmt.Errorf("resolve entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// ListChildren returns the direct children of an entity with the given kind
// in stable ID order.
func (s *CorpusStore) ListChildren(ctx context.Context, parentID string, kind common.EntityKind) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM entity
		WHERE parent_id = $1 AND kind = $2
		ORDER BY id
	`, entityColumns), parentID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

type entityRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntities(rows entityRows) ([]common.Entity, error) {
	var out []common.Entity
	for rows.Next() {
		var e common.Entity
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.NameAr, &e.DefinitionAr, &e.ParentID, &e.SourceAnchor); err != nil {
			return nil, err
		}
		e.Kind = common.EntityKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
