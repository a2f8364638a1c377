// Package pgvector backs the vector index with Postgres and the pgvector
// extension. Writes are durable immediately, so Save is a no-op and Load
// only checks that the chunk table exists.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"archive-rag/internal/domain"
	"archive-rag/internal/vectorindex"
)

// Store holds a pgx pool and the chunk table name.
type Store struct {
	pool  *pgxpool.Pool
	table string

	mu    sync.Mutex
	ready bool
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, dsn, table string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if table == "" {
		table = "archive_chunks"
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Reset drops the chunk table so a rebuild starts from scratch.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table))
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	return err
}

// Insert upserts one chunk with its embedding. The table is created lazily
// from the first vector's dimensionality.
func (s *Store) Insert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	if err := s.ensureSchema(ctx, len(vector)); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_uri, seq, title, author, published, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`, s.table)
	_, err := s.pool.Exec(ctx, query,
		chunk.ID(), chunk.ParentURI, chunk.Index,
		chunk.Title, chunk.Author, chunk.PublishedAt,
		chunk.Text, pgv.NewVector(vector))
	return err
}

// Search orders chunks by cosine distance to the query vector.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if len(vector) == 0 {
		return nil, errors.New("empty query vector")
	}
	if topK <= 0 {
		topK = 5
	}
	query := fmt.Sprintf(`
		SELECT parent_uri, seq, title, author, published, content,
		       1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, seq
		LIMIT $2`, s.table)
	rows, err := s.pool.Query(ctx, query, pgv.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var r domain.SearchResult
		var score float64
		if err := rows.Scan(
			&r.Chunk.ParentURI, &r.Chunk.Index,
			&r.Chunk.Title, &r.Chunk.Author, &r.Chunk.PublishedAt,
			&r.Chunk.Text, &score); err != nil {
			return nil, err
		}
		r.Score = float32(score)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Save is a no-op; every insert is already durable.
func (s *Store) Save(string) error { return nil }

// Load verifies the chunk table exists.
func (s *Store) Load(string) error {
	ctx := context.Background()
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
		s.table).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return vectorindex.ErrIndexMissing
	}
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	var n int
	if err := s.pool.QueryRow(context.Background(),
		fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *Store) ensureSchema(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		parent_uri TEXT NOT NULL,
		seq INT NOT NULL,
		title TEXT,
		author TEXT,
		published TEXT,
		content TEXT NOT NULL,
		embedding vector(%d)
	)`, s.table, dimension)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return err
	}
	s.ready = true
	return nil
}
