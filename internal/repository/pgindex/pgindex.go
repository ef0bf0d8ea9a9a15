// Package pgindex implements the job vector index on PostgreSQL with pgvector.
package pgindex

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/batch"
)

// Store is a pgvector-backed job index. It also owns the pending ledger table.
type Store struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *zap.Logger
}

// New opens a pool, verifies connectivity and optionally migrates.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	cfg.defaults()
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w: %w", domain.ErrIndexUnavailable, err)
	}

	s := &Store{pool: pool, cfg: cfg, logger: logger}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
}

// EnsureIndex applies any pending migrations.
func (s *Store) EnsureIndex(ctx context.Context) error {
	if err := s.migrate(ctx); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

const upsertSQL = `
	INSERT INTO job_documents (job_id, content, source, url, embedding, updated_at)
	VALUES ($1, $2, $3, $4, $5::vector, now())
	ON CONFLICT (job_id) DO UPDATE SET
		content    = EXCLUDED.content,
		source     = EXCLUDED.source,
		url        = EXCLUDED.url,
		embedding  = EXCLUDED.embedding,
		updated_at = now()`

// Upsert writes one row per document in its own statement.
func (s *Store) Upsert(ctx context.Context, docs []domain.IndexedDocument) ([]batch.Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	results := make([]batch.Result, len(docs))
	attempted, failed := 0, 0
	var lastErr error

	for i := range docs {
		doc := &docs[i]
		id := doc.Metadata.JobID
		if id.IsZero() {
			results[i] = batch.NewError("", domain.ErrMissingJobID)
			continue
		}
		if len(doc.Embedding) != s.cfg.Dimensions {
			results[i] = batch.NewError(id, fmt.Errorf(
				"embedding has %d dimensions, index expects %d: %w",
				len(doc.Embedding), s.cfg.Dimensions, domain.ErrValidation,
			))
			continue
		}

		attempted++
		_, err := s.pool.Exec(ctx, upsertSQL,
			id.String(), doc.Content, doc.Metadata.Source, doc.Metadata.URL,
			pgvector.NewVector(doc.Embedding),
		)
		if err != nil {
			failed++
			lastErr = err
			results[i] = batch.NewError(id, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err))
			continue
		}
		results[i] = batch.NewOK(id)
	}

	if attempted > 0 && failed == attempted {
		return nil, unavailable("upsert", lastErr)
	}
	return results, nil
}

// SearchKNN orders by cosine distance and scores 1 - distance.
func (s *Store) SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT job_id, content, source, url, 1 - (embedding <=> $1::vector) AS score
		FROM job_documents
		ORDER BY embedding <=> $1::vector, job_id
		LIMIT $2`,
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, unavailable("knn search", err)
	}
	return collectScored(rows)
}

// SearchKeyword ranks full-text matches with ts_rank.
func (s *Store) SearchKeyword(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT job_id, content, source, url, ts_rank(content_tsv, q) AS score
		FROM job_documents, plainto_tsquery('english', $1) AS q
		WHERE content_tsv @@ q
		ORDER BY score DESC, job_id
		LIMIT $2`,
		query, k,
	)
	if err != nil {
		return nil, unavailable("keyword search", err)
	}
	return collectScored(rows)
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM job_documents").Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// HealthCheck pings the pool.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func collectScored(rows pgx.Rows) ([]domain.ScoredDocument, error) {
	defer rows.Close()

	var out []domain.ScoredDocument
	for rows.Next() {
		var (
			id    string
			score float64
			doc   domain.IndexedDocument
		)
		if err := rows.Scan(&id, &doc.Content, &doc.Metadata.Source, &doc.Metadata.URL, &score); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		doc.Metadata.JobID = domain.JobID(id)
		out = append(out, domain.ScoredDocument{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading rows", err)
	}
	return out, nil
}
