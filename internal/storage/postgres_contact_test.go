package storage

import (
	"context"
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

var contactColumns = []string{"id", "phone", "name", "stage", "source", "created_at", "updated_at"}

func contactRow(rows *sqlmock.Rows, id, phone, name, stage string) *sqlmock.Rows {
	now := time.Now().UTC()
	return rows.AddRow(id, phone, name, stage, model.SourceWhatsApp, now, now)
}

func TestPostgresRepo_FindContactByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE id = $1`)).
			WithArgs("c-1", 1).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-1", "2348011111111", "Ada", "contacted"))

		contact, err := repo.FindContactByID(context.Background(), "c-1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", contact.Name)
		assert.Equal(t, model.StageContacted, contact.Stage)
	})

	t.Run("legacy stage is normalized on read", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE id = $1`)).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-2", "2348022222222", "Bola", "viewing_properties"))

		contact, err := repo.FindContactByID(context.Background(), "c-2")
		require.NoError(t, err)
		assert.Equal(t, model.StageViewing, contact.Stage)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(contactColumns))

		contact, err := repo.FindContactByID(context.Background(), "missing")
		assert.Nil(t, contact)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestPostgresRepo_FindOrCreateContact(t *testing.T) {
	ctx := context.Background()

	t.Run("existing contact is returned", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone = $1`)).
			WithArgs("2348011111111", 1).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-1", "2348011111111", "Ada", "qualified"))

		contact, created, err := repo.FindOrCreateContact(ctx, model.Contact{Phone: "2348011111111"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "c-1", contact.ID)
		assert.Equal(t, model.StageQualified, contact.Stage)
	})

	t.Run("absent contact is created with stage new", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone = $1`)).
			WillReturnRows(sqlmock.NewRows(contactColumns))
		mock.ExpectExec(`INSERT INTO "contacts" .* ON CONFLICT \("phone"\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		contact, created, err := repo.FindOrCreateContact(ctx, model.Contact{
			Phone:  "2348033333333",
			Name:   "Chidi",
			Source: model.SourceWhatsApp,
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, contact.ID)
		assert.Equal(t, model.StageNew, contact.Stage)
		assert.Equal(t, "Chidi", contact.Name)
	})

	t.Run("concurrent insert resolves to the winner", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone = $1`)).
			WillReturnRows(sqlmock.NewRows(contactColumns))
		mock.ExpectExec(`INSERT INTO "contacts"`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone = $1`)).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "winner", "2348044444444", "Dayo", "new"))

		contact, created, err := repo.FindOrCreateContact(ctx, model.Contact{Phone: "2348044444444"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "winner", contact.ID)
	})
}

func TestPostgresRepo_TouchContact(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("moves last_contact_at forward", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE contacts SET last_contact_at = GREATEST(COALESCE(last_contact_at, $1), $2)`)).
			WithArgs(at, at, AnyTime{}, "c-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.TouchContact(context.Background(), "c-1", at))
	})

	t.Run("unknown contact", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE contacts SET last_contact_at`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.TouchContact(context.Background(), "missing", at)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestPostgresRepo_UpdateContactIntent(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "contacts" SET "intent"=$1,"updated_at"=$2 WHERE id = $3`)).
		WithArgs(model.IntentRent, AnyTime{}, "c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateContactIntent(context.Background(), "c-1", model.IntentRent))
}

func TestPostgresRepo_TransitionStage(t *testing.T) {
	ctx := context.Background()
	lockQuery := `SELECT \* FROM "contacts" WHERE id = \$1 .*FOR UPDATE`

	t.Run("writes stage and one activity in a transaction", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-1", "2348011111111", "Ada", "new"))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "contacts" SET "stage"=$1,"updated_at"=$2 WHERE id = $3`)).
			WithArgs(model.StageViewing, AnyTime{}, "c-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO "activities" .* RETURNING "id"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectCommit()

		change, err := repo.TransitionStage(ctx, "c-1", model.StageViewing, "booked a viewing", model.ActorOperator)
		require.NoError(t, err)
		assert.True(t, change.Changed)
		assert.Equal(t, model.StageNew, change.OldStage)
		assert.Equal(t, model.StageViewing, change.NewStage)
		require.NotNil(t, change.Activity)
		assert.Equal(t, int64(7), change.Activity.ID)
		assert.Equal(t, model.ActivityStageChange, change.Activity.Type)
		assert.Equal(t, "booked a viewing", change.Activity.Notes)
		assert.Equal(t, model.ActorOperator, change.Activity.Actor)
	})

	t.Run("same stage writes nothing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-1", "2348011111111", "Ada", "qualified"))
		mock.ExpectCommit()

		change, err := repo.TransitionStage(ctx, "c-1", model.StageQualified, "", model.ActorOperator)
		require.NoError(t, err)
		assert.False(t, change.Changed)
		assert.Nil(t, change.Activity)
	})

	t.Run("legacy stored stage equal to target is a no-op", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-1", "2348011111111", "Ada", "qualifying"))
		mock.ExpectCommit()

		change, err := repo.TransitionStage(ctx, "c-1", model.StageQualified, "", model.ActorSystem)
		require.NoError(t, err)
		assert.False(t, change.Changed)
	})

	t.Run("missing contact rolls back", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows(contactColumns))
		mock.ExpectRollback()

		change, err := repo.TransitionStage(ctx, "missing", model.StageLost, "", model.ActorOperator)
		assert.Nil(t, change)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("activity failure rolls back the stage write", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-1", "2348011111111", "Ada", "new"))
		mock.ExpectExec(`UPDATE "contacts" SET "stage"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO "activities"`).WillReturnError(&pgconn.PgError{Code: "23503"})
		mock.ExpectRollback()

		change, err := repo.TransitionStage(ctx, "c-1", model.StageClosed, "", model.ActorOperator)
		assert.Nil(t, change)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestPostgresRepo_FindAudience(t *testing.T) {
	ctx := context.Background()

	t.Run("all predicates are combined", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		minBudget, maxBudget := int64(5_000_000), int64(20_000_000)
		mock.ExpectQuery(`SELECT \* FROM "contacts" WHERE .*phone IS NOT NULL AND phone <> ''.*stage IN \(\$1,\$2\).*preferred_location ILIKE \$3.*COALESCE\(budget_max, budget_min\) >= \$4.*COALESCE\(budget_min, budget_max\) <= \$5.*ORDER BY last_contact_at DESC NULLS LAST`).
			WithArgs("qualified", "qualifying", "%Lekki%", minBudget, maxBudget).
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-1", "2348011111111", "Ada", "qualifying"))

		contacts, err := repo.FindAudience(ctx, model.AudienceFilter{
			Stage:     model.StageQualified,
			Location:  "Lekki",
			BudgetMin: &minBudget,
			BudgetMax: &maxBudget,
		})
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, model.StageQualified, contacts[0].Stage)
	})

	t.Run("legacy filter stage matches canonical rows", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT \* FROM "contacts" WHERE .*stage IN \(\$1,\$2\)`).
			WithArgs("viewing", "viewing_properties").
			WillReturnRows(contactRow(sqlmock.NewRows(contactColumns), "c-2", "2348022222222", "Bola", "viewing"))

		contacts, err := repo.FindAudience(ctx, model.AudienceFilter{Stage: "viewing_properties"})
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, model.StageViewing, contacts[0].Stage)
	})

	t.Run("empty filter only requires a phone", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT \* FROM "contacts" WHERE phone IS NOT NULL AND phone <> '' ORDER BY last_contact_at DESC NULLS LAST`).
			WillReturnRows(sqlmock.NewRows(contactColumns))

		contacts, err := repo.FindAudience(ctx, model.AudienceFilter{})
		require.NoError(t, err)
		assert.NotNil(t, contacts)
		assert.Empty(t, contacts)
	})
}
