package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"github.com/qrdesk/qrstudio/internal/pkg/printpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestManifestRepo_FindMiss(t *testing.T) {
	db, mock := setupMockDB(t)
	r := NewManifestRepo(db)

	mock.ExpectQuery(q(`SELECT * FROM "generation_manifests" WHERE owner_id = $1 AND project_id = $2 AND generation_hash = $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	m, err := r.Find(context.Background(), "owner-1", uuid.New(), "abc")
	require.NoError(t, err)
	assert.Nil(t, m)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepo_FindHit(t *testing.T) {
	db, mock := setupMockDB(t)
	r := NewManifestRepo(db)
	id, projectID := uuid.New(), uuid.New()

	rows := sqlmock.NewRows([]string{"id", "owner_id", "project_id", "generation_hash", "spec", "files", "created_at", "updated_at"}).
		AddRow(id.String(), "owner-1", projectID.String(), "abc", []byte(`{"project_id":"p","formats":["card"]}`),
			[]byte(`{"card":{"filename":"acme-card.pdf","storage_path":"print-packs/owner-1/p/abc/acme-card.pdf","byte_size":1200}}`),
			time.Now(), time.Now())
	mock.ExpectQuery(q(`SELECT * FROM "generation_manifests"`)).WillReturnRows(rows)

	m, err := r.Find(context.Background(), "owner-1", projectID, "abc")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, []printpack.FormatKey{printpack.FormatCard}, m.Spec.Data().Formats)
	assert.Equal(t, int64(1200), m.Files.Data()[printpack.FormatCard].ByteSize)
	assert.Empty(t, m.Missing([]printpack.FormatKey{printpack.FormatCard}))
	assert.Equal(t, []printpack.FormatKey{printpack.FormatFlyerA4}, m.Missing([]printpack.FormatKey{printpack.FormatCard, printpack.FormatFlyerA4}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepo_UpsertInsert(t *testing.T) {
	db, mock := setupMockDB(t)
	r := NewManifestRepo(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO "generation_manifests"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
	mock.ExpectCommit()

	m := &model.GenerationManifest{
		OwnerID:        "owner-1",
		ProjectID:      uuid.New(),
		GenerationHash: "abc",
		Spec:           datatypes.NewJSONType(printpack.Spec{}),
		Files:          datatypes.NewJSONType(model.ManifestFiles{}),
	}
	got, err := r.Upsert(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepo_UpsertDuplicateMergesFiles(t *testing.T) {
	db, mock := setupMockDB(t)
	r := NewManifestRepo(db)
	id, projectID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO "generation_manifests"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "owner_id", "project_id", "generation_hash", "spec", "files", "created_at", "updated_at"}).
		AddRow(id.String(), "owner-1", projectID.String(), "abc", []byte(`{}`),
			[]byte(`{"card":{"filename":"acme-card.pdf","storage_path":"k/card","byte_size":10}}`),
			time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM "generation_manifests" .* FOR UPDATE`).WillReturnRows(rows)
	mock.ExpectExec(q(`UPDATE "generation_manifests" SET`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	in := &model.GenerationManifest{
		OwnerID:        "owner-1",
		ProjectID:      projectID,
		GenerationHash: "abc",
		Spec:           datatypes.NewJSONType(printpack.Spec{ProjectID: projectID.String()}),
		Files: datatypes.NewJSONType(model.ManifestFiles{
			printpack.FormatFlyerA4: {Filename: "acme-flyer_a4.pdf", StoragePath: "k/a4", ByteSize: 20},
		}),
	}
	got, err := r.Upsert(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	files := got.Files.Data()
	assert.Len(t, files, 2)
	assert.Equal(t, "k/card", files[printpack.FormatCard].StoragePath)
	assert.Equal(t, "k/a4", files[printpack.FormatFlyerA4].StoragePath)
	assert.Equal(t, projectID.String(), got.Spec.Data().ProjectID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepo_UpsertOtherError(t *testing.T) {
	db, mock := setupMockDB(t)
	r := NewManifestRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO "generation_manifests"`)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := r.Upsert(context.Background(), &model.GenerationManifest{OwnerID: "o", ProjectID: uuid.New(), GenerationHash: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepo_CreateWithUsage(t *testing.T) {
	guardErr := errors.New("limit reached")

	tests := []struct {
		name        string
		setup       func(sqlmock.Sqlmock)
		guard       CreateGuard
		expectError error
	}{
		{
			name: "guard approves",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(q(`SELECT pg_advisory_xact_lock(hashtext($1))`)).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(q(`SELECT "created_at" FROM "usage_events"`)).
					WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
				mock.ExpectQuery(q(`INSERT INTO "projects"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
				mock.ExpectQuery(q(`INSERT INTO "usage_events"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
				mock.ExpectCommit()
			},
			guard: func(creates []time.Time) error { return nil },
		},
		{
			name: "guard rejects",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(q(`SELECT pg_advisory_xact_lock(hashtext($1))`)).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(q(`SELECT "created_at" FROM "usage_events"`)).
					WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().Add(-time.Hour)))
				mock.ExpectRollback()
			},
			guard: func(creates []time.Time) error {
				if len(creates) >= 1 {
					return guardErr
				}
				return nil
			},
			expectError: guardErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tt.setup(mock)

			p := &model.Project{OwnerID: "owner-1", BusinessName: "Acme", TargetURL: "acme.example", TemplateID: "qr_logo", TemplateVersion: 1}
			err := NewProjectRepo(db).CreateWithUsage(context.Background(), p, time.Time{}, tt.guard)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				assert.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, p.ID)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProjectRepo_UpdateWithUsageLocked(t *testing.T) {
	db, mock := setupMockDB(t)
	id := uuid.New()
	locked := errors.New("locked")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "projects" WHERE id = \$1 .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "business_name", "target_url", "template_id", "template_version"}).
			AddRow(id.String(), "owner-1", "Acme", "acme.example", "qr_logo", 1))
	mock.ExpectQuery(q(`SELECT count(*) FROM "usage_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	applied := false
	_, err := NewProjectRepo(db).UpdateWithUsage(context.Background(), id,
		func(p *model.Project) error { applied = true; return nil },
		func(n int64) error {
			if n >= 1 {
				return locked
			}
			return nil
		})
	assert.ErrorIs(t, err, locked)
	assert.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepo_ListByOwnerWithCursor(t *testing.T) {
	db, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "projects" WHERE owner_id = \$1 AND \(\(created_at < \$2\) OR \(created_at = \$3 AND id < \$4\)\) ORDER BY created_at DESC, id DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "business_name", "created_at"}).
			AddRow(uuid.NewString(), "owner-1", "B", now.Add(-time.Minute)).
			AddRow(uuid.NewString(), "owner-1", "A", now.Add(-2*time.Minute)))

	items, err := NewProjectRepo(db).ListByOwnerWithCursor(context.Background(), "owner-1", now, uuid.New(), 3, true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[0].BusinessName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageEventRepo_ListCreateTimesSince(t *testing.T) {
	db, mock := setupMockDB(t)
	since := time.Now().Add(-30 * 24 * time.Hour)
	t1 := since.Add(time.Hour)

	mock.ExpectQuery(q(`SELECT "created_at" FROM "usage_events" WHERE (owner_id = $1 AND kind = $2) AND created_at >= $3`)).
		WithArgs("owner-1", model.UsageCreate, since).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(t1))

	got, err := NewUsageEventRepo(db).ListCreateTimes(context.Background(), "owner-1", since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(t1))
	require.NoError(t, mock.ExpectationsWereMet())
}
