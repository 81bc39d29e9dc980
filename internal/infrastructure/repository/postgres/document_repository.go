package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

// DocumentRepository durably stores ingested documents. The external ID is
// the idempotency key: re-ingesting the same row updates in place.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Upsert(ctx context.Context, externalID string, text string, meta domain.DocumentMetadata) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal document metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (external_id, text, metadata, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (external_id) DO UPDATE
SET text = EXCLUDED.text, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at
`, externalID, text, metaJSON, time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "upsert document", err)
	}
	return nil
}

// ListAll returns every stored document ordered by external ID. Embeddings
// are not persisted; the refresher embeds on hydration.
func (r *DocumentRepository) ListAll(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT external_id, text, metadata
FROM documents
ORDER BY external_id
`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "list documents", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		var doc domain.Document
		var metaRaw []byte
		if err := rows.Scan(&doc.ID, &doc.Text, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(metaRaw, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
