package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/community-class-api/internal/models"
)

func TestAttendanceAddAttendeeConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (attendance_id, student_id) DO NOTHING")).
		WithArgs("att-1", "user-1", now, models.AttendancePresent).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}))

	err := repo.AddAttendee(context.Background(), &models.Attendee{AttendanceID: "att-1", StudentID: "user-1", CheckInTime: &now, Status: models.AttendancePresent})
	require.ErrorIs(t, err, models.ErrAlreadyCheckedIn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceAddAttendeeInserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_attendees")).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("user-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_records SET updated_at = $2 WHERE id = $1")).
		WithArgs("att-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AddAttendee(context.Background(), &models.Attendee{AttendanceID: "att-1", StudentID: "user-1", CheckInTime: &now, Status: models.AttendancePresent})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceCreateMapsDuplicateSession(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: attendanceSessionKey})

	err := repo.Create(context.Background(), &models.AttendanceRecord{ClassID: "class-1", SessionDate: time.Now()})
	require.ErrorIs(t, err, models.ErrAttendanceSessionExists)
}

func TestAttendanceListByClassGroupsAttendees(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 7)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records\n        WHERE class_id = $1 ORDER BY session_date DESC")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "session_date", "created_at", "updated_at"}).
			AddRow("att-2", "class-1", day2, day2, day2).
			AddRow("att-1", "class-1", day1, day1, day1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ar.class_id = $1")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"attendance_id", "student_id", "check_in_time", "status", "first_name", "last_name", "email"}).
			AddRow("att-1", "user-1", day1, "present", "Ada", "Lovelace", "ada@example.org").
			AddRow("att-1", "user-2", nil, "absent", "Alan", "Turing", "alan@example.org"))

	records, err := repo.ListByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "att-2", records[0].ID)
	assert.Empty(t, records[0].Attendees)
	assert.NotNil(t, records[0].Attendees)
	require.Len(t, records[1].Attendees, 2)
	assert.Nil(t, records[1].Attendees[1].CheckInTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceExistsForSession(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	session := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE class_id = $1 AND session_date = $2")).
		WithArgs("class-1", session).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForSession(context.Background(), "class-1", session)
	require.NoError(t, err)
	assert.True(t, exists)
}
