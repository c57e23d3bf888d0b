// Package db persists registered leaves and commitment roots to PostgreSQL.
// It is a collaborator: the core registry works without it, falling back to
// in-memory state only.
package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/protrace/registry-engine/pkg/models"
)

// PostgresStore persists registry leaves and roots over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against connStr and verifies it with a ping.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for the registry engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes internal/db/schema.sql.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Registry schema initialized")
	return nil
}

// SaveLeaf persists one accepted leaf transactionally.
func (s *PostgresStore) SaveLeaf(ctx context.Context, leaf models.Leaf) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertSQL := `
		INSERT INTO registry_leaves (leaf_index, dna_hex, pointer, platform_id, registered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (leaf_index) DO NOTHING;
	`
	_, err = tx.Exec(ctx, insertSQL, leaf.Index, leaf.DNA.Hex(), leaf.Pointer, leaf.PlatformID, leaf.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert registry_leaves: %v", err)
	}

	return tx.Commit(ctx)
}

// SaveRoot records the commitment root after a leaf count change.
func (s *PostgresStore) SaveRoot(ctx context.Context, leafCount int, root [32]byte) error {
	sql := `
		INSERT INTO registry_roots (leaf_count, root_hash, recorded_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (leaf_count) DO UPDATE SET root_hash = EXCLUDED.root_hash, recorded_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, leafCount, fmt.Sprintf("%x", root))
	return err
}

// LeafRow mirrors one row of registry_leaves for API responses.
type LeafRow struct {
	Index      int    `json:"index"`
	DNAHex     string `json:"dnaHex"`
	Pointer    string `json:"pointer"`
	PlatformID string `json:"platformId"`
	Timestamp  int64  `json:"timestamp"`
}

// ListLeaves returns a page of registered leaves ordered by index.
func (s *PostgresStore) ListLeaves(ctx context.Context, page, limit int) ([]LeafRow, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registry_leaves`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT leaf_index, dna_hex, pointer, platform_id, registered_at
		FROM registry_leaves
		ORDER BY leaf_index ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []LeafRow
	for rows.Next() {
		var r LeafRow
		if err := rows.Scan(&r.Index, &r.DNAHex, &r.Pointer, &r.PlatformID, &r.Timestamp); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if out == nil {
		out = []LeafRow{}
	}
	return out, total, nil
}

// GetPool exposes the connection pool for collaborators that need it
// directly (e.g. a future migration runner).
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
