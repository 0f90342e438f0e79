package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return New(db), mock
}

func TestTransitionStatus_Applied(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`UPDATE "listings" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	ok, err := s.TransitionStatus(context.Background(), lifecycle.KindListing, uuid.New(),
		lifecycle.StatusActive, lifecycle.StatusRemoved, &now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_LostRace(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`UPDATE "templates" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.TransitionStatus(context.Background(), lifecycle.KindTemplate, uuid.New(),
		lifecycle.StatusActive, lifecycle.StatusRemoved, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_UnknownKind(t *testing.T) {
	s, _ := newMock(t)
	_, err := s.TransitionStatus(context.Background(), lifecycle.Kind("album"), uuid.New(),
		lifecycle.StatusActive, lifecycle.StatusRemoved, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGetEntity_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT \* FROM "listings"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetEntity(context.Background(), lifecycle.KindListing, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEntity_Listing(t *testing.T) {
	s, mock := newMock(t)
	id, owner := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{"id", "owner_id", "title", "status"}).
		AddRow(id.String(), owner.String(), "Messi 2022 #10", "active")
	mock.ExpectQuery(`SELECT \* FROM "listings"`).WillReturnRows(rows)

	e, err := s.GetEntity(context.Background(), lifecycle.KindListing, id)
	require.NoError(t, err)
	assert.Equal(t, id, e.ID)
	assert.Equal(t, owner, e.OwnerID)
	assert.Equal(t, lifecycle.StatusActive, e.Status)
	assert.Equal(t, "Messi 2022 #10", e.Title)
}

func TestCreateSchedule_Duplicate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "retention_schedules"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := s.CreateSchedule(context.Background(), &models.RetentionSchedule{
		EntityType:   lifecycle.KindListing,
		EntityID:     uuid.New(),
		ScheduledFor: time.Now().Add(30 * 24 * time.Hour),
	})
	assert.ErrorIs(t, err, apperr.ErrDuplicateSchedule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReport_AlreadyClosed(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`UPDATE "reports" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	by := uuid.New()
	ok, err := s.ResolveReport(context.Background(), uuid.New(), resolution(by))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetSuspension_MissingUser(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetSuspension(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, wrap("op", nil))
	assert.ErrorIs(t, wrap("op", gorm.ErrRecordNotFound), apperr.ErrNotFound)
	assert.ErrorIs(t, wrap("op", gorm.ErrDuplicatedKey), apperr.ErrDuplicateSchedule)
	assert.ErrorIs(t, wrap("op", errors.New("pq: permission denied for table listings")), apperr.ErrPermission)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(wrap("op", errors.New("connection reset"))))
}

func resolution(by uuid.UUID) store.ReportResolution {
	return store.ReportResolution{
		Status:     models.ReportDismissed,
		Action:     models.ActionDismiss,
		AdminNotes: "duplicate",
		ResolvedBy: &by,
		ResolvedAt: time.Now(),
	}
}
