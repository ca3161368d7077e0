package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
)

func TestPostgresRepo_SaveMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("insert returns the generated id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		msg := model.NewMessage(&model.Message{ContactID: "c-1", ProviderMessageID: "wamid.1"})
		mock.ExpectQuery(`INSERT INTO "messages" .* RETURNING "id"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		require.NoError(t, repo.SaveMessage(ctx, msg))
		assert.Equal(t, int64(42), msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())
	})

	t.Run("repeated provider id is a duplicate", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		msg := model.NewMessage(&model.Message{ContactID: "c-1", ProviderMessageID: "wamid.1"})
		mock.ExpectQuery(`INSERT INTO "messages"`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_messages_provider_message_id"})

		err := repo.SaveMessage(ctx, msg)
		assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	})

	t.Run("unexpected error is a database error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO "messages"`).WillReturnError(errors.New("disk full"))

		err := repo.SaveMessage(ctx, model.NewMessage())
		assert.ErrorIs(t, err, apperrors.ErrDatabase)
	})
}

func TestPostgresRepo_FindMessageByProviderID(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "messages" WHERE provider_message_id = $1`)).
		WithArgs("wamid.9", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "contact_id", "provider_message_id", "direction", "status"}).
			AddRow(9, "c-1", "wamid.9", model.DirectionOutbound, "delivered"))

	msg, err := repo.FindMessageByProviderID(context.Background(), "wamid.9")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, msg.Status)

	repo2, mock2 := newMockRepo(t)
	mock2.ExpectQuery(`SELECT \* FROM "messages"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo2.FindMessageByProviderID(context.Background(), "wamid.none")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresRepo_ApplyMessageStatus(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	update := regexp.QuoteMeta(`UPDATE "messages" SET "status"=$1,"status_at"=$2 WHERE provider_message_id = $3 AND (status IS NULL OR status IN ($4,$5))`)

	t.Run("forward move is applied", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(update).
			WithArgs("delivered", at, "wamid.1", "", "sent").
			WillReturnResult(sqlmock.NewResult(0, 1))

		applied, err := repo.ApplyMessageStatus(context.Background(), "wamid.1", model.StatusDelivered, at)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("regression or unknown id changes nothing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))

		applied, err := repo.ApplyMessageStatus(context.Background(), "wamid.1", model.StatusDelivered, at)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("read accepts every earlier status", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(`status IN ($4,$5,$6)`)).
			WithArgs("read", at, "wamid.1", "", "sent", "delivered").
			WillReturnResult(sqlmock.NewResult(0, 1))

		applied, err := repo.ApplyMessageStatus(context.Background(), "wamid.1", model.StatusRead, at)
		require.NoError(t, err)
		assert.True(t, applied)
	})
}
