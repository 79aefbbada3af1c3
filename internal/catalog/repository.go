package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/postgres"
)

// Repository persists the document collection so it survives restarts.
type Repository interface {
	List(ctx context.Context) ([]Document, error)
	Insert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id int64) (int64, error)
}

// Schema creates the documents table. doc_id is not unique: several rows
// may share an id, and Delete removes all of them.
const Schema = `CREATE TABLE IF NOT EXISTS portal_documents (
    seq         BIGSERIAL PRIMARY KEY,
    doc_id      BIGINT NOT NULL,
    title       TEXT NOT NULL,
    content     TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresRepository stores documents in the portal_documents table.
type PostgresRepository struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgresRepository creates a repository on top of an open client.
func NewPostgresRepository(db *postgres.Client) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: slog.Default().With("component", "catalog-repository"),
	}
}

// Migrate creates the table if needed.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating portal_documents: %w", err)
	}
	return nil
}

// List returns every stored document in insertion order.
func (r *PostgresRepository) List(ctx context.Context) ([]Document, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT doc_id, title, content, description, category, url
		FROM portal_documents ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Description, &d.Category, &d.URL); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// Insert appends a document.
func (r *PostgresRepository) Insert(ctx context.Context, doc Document) error {
	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO portal_documents (doc_id, title, content, description, category, url)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Title, doc.Content, doc.Description, doc.Category, doc.URL,
	)
	if err != nil {
		return fmt.Errorf("inserting document %d: %w", doc.ID, err)
	}
	r.logger.Debug("document stored", "doc_id", doc.ID)
	return nil
}

// Delete removes every row carrying the id and reports how many went away.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM portal_documents WHERE doc_id = $1`, id)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deleting document %d: %w", id, err)
	}
	r.logger.Debug("documents deleted", "doc_id", id, "rows", removed)
	return removed, nil
}

// SeedIfEmpty inserts docs when the table holds nothing yet. It returns the
// collection that should be indexed.
func (r *PostgresRepository) SeedIfEmpty(ctx context.Context, docs []Document) ([]Document, error) {
	existing, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}
	err = r.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, d := range docs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO portal_documents (doc_id, title, content, description, category, url)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				d.ID, d.Title, d.Content, d.Description, d.Category, d.URL,
			); err != nil {
				return fmt.Errorf("seeding document %d: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("catalog seeded", "documents", len(docs))
	return docs, nil
}
