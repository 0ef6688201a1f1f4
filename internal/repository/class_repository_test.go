package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/community-class-api/internal/models"
)

var classRowColumns = []string{"id", "title", "description", "city", "address", "latitude", "longitude",
	"instructor_name", "instructor_bio", "type", "cost", "target_gender", "age_min", "age_max",
	"capacity", "schedule", "registration_type", "external_link", "created_at", "updated_at", "enrollment_count"}

func TestClassListBuildsFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	minAge, maxAge, maxCost := 5, 8, 20.0
	filter := models.ClassFilter{City: " Portland ", Gender: "Female", MinAge: &minAge, MaxAge: &maxAge, MaxCost: &maxCost, Type: models.ClassTypeOngoing}

	now := time.Now()
	rows := sqlmock.NewRows(classRowColumns).
		AddRow("class-1", "Clay", "Pottery", "Portland", "1 Main St", 45.5, -122.6, "Kim", nil, "ongoing", 15.0, "any", 6, 10,
			12, []byte(`[{"date":"2024-03-01T00:00:00Z","startTime":"09:30","endTime":"11:00"}]`), "internal", nil, now, now, 4)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE LOWER(c.city) = LOWER($1) AND c.target_gender IN ($2, 'any') AND c.age_min <= $3 AND (c.age_max IS NULL OR c.age_max >= $4) AND c.cost <= $5 AND c.type = $6 ORDER BY c.created_at DESC`)).
		WithArgs("Portland", "female", 8, 5, 20.0, models.ClassTypeOngoing).
		WillReturnRows(rows)

	classes, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, classes, 1)

	got := classes[0]
	assert.Equal(t, 4, got.EnrollmentCount)
	assert.Equal(t, 8, got.SeatsLeft())
	require.NotNil(t, got.Location.Coordinates)
	assert.Equal(t, 45.5, got.Location.Coordinates.Lat)
	require.Len(t, got.Schedule, 1)
	assert.Equal(t, "09:30", got.Schedule[0].StartTime)
	require.NotNil(t, got.TargetAgeRange.Max)
	assert.Equal(t, 10, *got.TargetAgeRange.Max)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassListWithoutFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(`GROUP BY class_id\s+\) r ON r.class_id = c.id ORDER BY c.created_at DESC`).
		WillReturnRows(sqlmock.NewRows(classRowColumns))

	classes, err := repo.List(context.Background(), models.ClassFilter{})
	require.NoError(t, err)
	assert.Empty(t, classes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.id = $1")).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestClassDistinctCities(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT city FROM classes ORDER BY city")).
		WillReturnRows(sqlmock.NewRows([]string{"city"}).AddRow("Austin").AddRow("Portland"))

	cities, err := repo.DistinctCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Austin", "Portland"}, cities)
}
