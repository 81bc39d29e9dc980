package postgres

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

func TestDocumentUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("d-1", "rainfall in punjab", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewDocumentRepository(db)
	err = repo.Upsert(context.Background(), "d-1", "rainfall in punjab", domain.DocumentMetadata{Dataset: "rainfall"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentUpsertDatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO documents").
		WillReturnError(errors.New("connection refused"))

	repo := NewDocumentRepository(db)
	err = repo.Upsert(context.Background(), "d-1", "text", domain.DocumentMetadata{})
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestDocumentListAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"external_id", "text", "metadata"}).
		AddRow("d-1", "rainfall in punjab", []byte(`{"dataset":"rainfall","state":"punjab","year":2020,"row_ref":"d-1"}`)).
		AddRow("d-2", "wheat yield", []byte(`{}`))
	mock.ExpectQuery("SELECT external_id, text, metadata").WillReturnRows(rows)

	repo := NewDocumentRepository(db)
	docs, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if docs[0].ID != "d-1" || docs[0].Metadata.Dataset != "rainfall" {
		t.Fatalf("doc = %+v", docs[0])
	}
}

func TestDocumentListAllBadMetadata(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"external_id", "text", "metadata"}).
		AddRow("d-1", "text", []byte("not json"))
	mock.ExpectQuery("SELECT external_id, text, metadata").WillReturnRows(rows)

	repo := NewDocumentRepository(db)
	if _, err := repo.ListAll(context.Background()); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}
