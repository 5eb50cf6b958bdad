package uploads

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expiresAt := time.Now().Add(time.Hour)
	mock.ExpectQuery(`(?s)INSERT INTO pending_uploads`).
		WithArgs("t-1", "u-1", "designs/u-1/key", expiresAt).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	got, err := repo.Create(context.Background(), &models.PendingUpload{
		ID: "t-1", UserID: "u-1", StorageKey: "designs/u-1/key", ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be populated")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT .* FROM pending_uploads WHERE id`).
		WithArgs("t-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "t-missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestConsume_SingleWinner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`(?s)UPDATE pending_uploads SET consumed_at .* consumed_at IS NULL`).
		WithArgs("t-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Consume(context.Background(), "t-1", at); err != nil {
		t.Fatalf("Consume error: %v", err)
	}

	// second commit updates zero rows and loses
	mock.ExpectExec(`(?s)UPDATE pending_uploads SET consumed_at .* consumed_at IS NULL`).
		WithArgs("t-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Consume(context.Background(), "t-1", at)
	if !errors.Is(err, common.ErrorTicketConsumed) {
		t.Fatalf("expected ErrorTicketConsumed, got %v", err)
	}
}
