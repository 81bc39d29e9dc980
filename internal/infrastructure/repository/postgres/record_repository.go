package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

// RecordRepository durably stores harmonized dataset rows, idempotent on the
// external ID.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Upsert(ctx context.Context, externalID string, record domain.DatasetRecord) error {
	dimsJSON, err := json.Marshal(record.Dimensions)
	if err != nil {
		return fmt.Errorf("marshal dimensions: %w", err)
	}
	measuresJSON, err := json.Marshal(record.Measures)
	if err != nil {
		return fmt.Errorf("marshal measures: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO dataset_records (external_id, dataset_name, dimensions, measures, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (external_id) DO UPDATE
SET dataset_name = EXCLUDED.dataset_name,
    dimensions = EXCLUDED.dimensions,
    measures = EXCLUDED.measures,
    updated_at = EXCLUDED.updated_at
`, externalID, record.Dataset, dimsJSON, measuresJSON, time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "upsert record", err)
	}
	return nil
}

func (r *RecordRepository) ListAll(ctx context.Context) ([]domain.DatasetRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT dataset_name, dimensions, measures
FROM dataset_records
ORDER BY dataset_name, external_id
`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "list records", err)
	}
	defer rows.Close()

	var out []domain.DatasetRecord
	for rows.Next() {
		var rec domain.DatasetRecord
		var dimsRaw, measuresRaw []byte
		if err := rows.Scan(&rec.Dataset, &dimsRaw, &measuresRaw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal(dimsRaw, &rec.Dimensions); err != nil {
			return nil, fmt.Errorf("unmarshal dimensions: %w", err)
		}
		if err := json.Unmarshal(measuresRaw, &rec.Measures); err != nil {
			return nil, fmt.Errorf("unmarshal measures: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
