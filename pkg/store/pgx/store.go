// Package pgx implements the store interfaces against Postgres with
// pgvector for chunk embeddings.
package pgx

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// CorpusStore implements store.RetrievalStore and store.RunStore over a
// pgx connection pool. The pool handles concurrency; the store itself is
// stateless.
type CorpusStore struct {
	conn *pgxpool.Pool
}

// New creates a CorpusStore over the given pool. The pool must have
// pgvector types registered (pgxvec.RegisterTypes in AfterConnect).
func New(conn *pgxpool.Pool) *CorpusStore {
	return &CorpusStore{conn: conn}
}
