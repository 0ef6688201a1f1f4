package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/community-class-api/internal/models"
)

func expectCapacityChecks(mock sqlmock.Sqlmock, capacity, active int, duplicate bool) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM classes WHERE id = $1 FOR UPDATE")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(capacity))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND class_id = $2")).
		WithArgs("user-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(duplicate))
	if duplicate {
		return
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE class_id = $1")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(active))
}

func TestRegistrationCreateWithinCapacityEnrolls(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	expectCapacityChecks(mock, 2, 1, false)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reg := &models.Registration{UserID: "user-1", ClassID: "class-1"}
	require.NoError(t, repo.CreateWithinCapacity(context.Background(), reg, false))
	assert.Equal(t, models.RegistrationEnrolled, reg.Status)
	assert.NotEmpty(t, reg.ID)
	assert.False(t, reg.RegistrationDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationCreateWithinCapacityRejectsFullClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	expectCapacityChecks(mock, 2, 2, false)
	mock.ExpectRollback()

	err := repo.CreateWithinCapacity(context.Background(), &models.Registration{UserID: "user-1", ClassID: "class-1"}, false)
	require.ErrorIs(t, err, models.ErrClassFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationCreateWithinCapacityWaitlists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	expectCapacityChecks(mock, 2, 2, false)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reg := &models.Registration{UserID: "user-1", ClassID: "class-1"}
	require.NoError(t, repo.CreateWithinCapacity(context.Background(), reg, true))
	assert.Equal(t, models.RegistrationWaitlisted, reg.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationCreateWithinCapacityDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	expectCapacityChecks(mock, 2, 0, true)
	mock.ExpectRollback()

	err := repo.CreateWithinCapacity(context.Background(), &models.Registration{UserID: "user-1", ClassID: "class-1"}, false)
	require.ErrorIs(t, err, models.ErrRegistrationDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationCreateWithinCapacityMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	expectCapacityChecks(mock, 2, 0, false)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: activeRegistrationIndex})
	mock.ExpectRollback()

	err := repo.CreateWithinCapacity(context.Background(), &models.Registration{UserID: "user-1", ClassID: "class-1"}, false)
	require.ErrorIs(t, err, models.ErrRegistrationDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationCreateWithinCapacityMissingClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM classes")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.CreateWithinCapacity(context.Background(), &models.Registration{UserID: "user-1", ClassID: "class-1"}, false)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationListByClassJoinsUsers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "class_id", "status", "registration_date", "notes", "created_at", "updated_at",
		"first_name", "last_name", "email", "age", "gender", "phone"}).
		AddRow("reg-1", "user-1", "class-1", "enrolled", now, nil, now, now, "Ada", "Lovelace", "ada@example.org", 36, "female", nil)
	mock.ExpectQuery(`JOIN users u ON u.id = g.user_id\s+WHERE g.class_id = \$1\s+ORDER BY g.registration_date DESC`).
		WithArgs("class-1").
		WillReturnRows(rows)

	regs, err := repo.ListByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "Ada Lovelace", regs[0].DisplayName())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1")).
		WithArgs("reg-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Delete(context.Background(), "reg-9"), sql.ErrNoRows)
}
