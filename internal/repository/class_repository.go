package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-class-api/internal/models"
)

const activeStatusSQL = `('enrolled', 'waitlisted')`

const classColumns = `c.id, c.title, c.description, c.city, c.address, c.latitude, c.longitude,
        c.instructor_name, c.instructor_bio, c.type, c.cost, c.target_gender, c.age_min, c.age_max,
        c.capacity, c.schedule, c.registration_type, c.external_link, c.created_at, c.updated_at`

const classFrom = `FROM classes c
LEFT JOIN (
    SELECT class_id, COUNT(*) AS enrolled FROM registrations
    WHERE status IN ` + activeStatusSQL + ` GROUP BY class_id
) r ON r.class_id = c.id`

type classRow struct {
	ID               string                  `db:"id"`
	Title            string                  `db:"title"`
	Description      string                  `db:"description"`
	City             string                  `db:"city"`
	Address          string                  `db:"address"`
	Latitude         sql.NullFloat64         `db:"latitude"`
	Longitude        sql.NullFloat64         `db:"longitude"`
	InstructorName   string                  `db:"instructor_name"`
	InstructorBio    *string                 `db:"instructor_bio"`
	Type             models.ClassType        `db:"type"`
	Cost             float64                 `db:"cost"`
	TargetGender     models.TargetGender     `db:"target_gender"`
	AgeMin           int                     `db:"age_min"`
	AgeMax           *int                    `db:"age_max"`
	Capacity         int                     `db:"capacity"`
	Schedule         models.Schedule         `db:"schedule"`
	RegistrationType models.RegistrationType `db:"registration_type"`
	ExternalLink     *string                 `db:"external_link"`
	EnrollmentCount  int                     `db:"enrollment_count"`
	CreatedAt        time.Time               `db:"created_at"`
	UpdatedAt        time.Time               `db:"updated_at"`
}

func newClassRow(c *models.ClassOffering) classRow {
	row := classRow{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		City:             c.City,
		Address:          c.Location.Address,
		InstructorName:   c.Instructor.Name,
		InstructorBio:    c.Instructor.Bio,
		Type:             c.Type,
		Cost:             c.Cost,
		TargetGender:     c.TargetGender,
		AgeMin:           c.TargetAgeRange.Min,
		AgeMax:           c.TargetAgeRange.Max,
		Capacity:         c.Capacity,
		Schedule:         c.Schedule,
		RegistrationType: c.RegistrationType,
		ExternalLink:     c.ExternalLink,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.Location.Coordinates != nil {
		row.Latitude = sql.NullFloat64{Float64: c.Location.Coordinates.Lat, Valid: true}
		row.Longitude = sql.NullFloat64{Float64: c.Location.Coordinates.Lng, Valid: true}
	}
	return row
}

func (r classRow) model() models.ClassOffering {
	class := models.ClassOffering{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		City:             r.City,
		Location:         models.Location{Address: r.Address},
		Instructor:       models.Instructor{Name: r.InstructorName, Bio: r.InstructorBio},
		Type:             r.Type,
		Cost:             r.Cost,
		TargetGender:     r.TargetGender,
		TargetAgeRange:   models.AgeRange{Min: r.AgeMin, Max: r.AgeMax},
		Capacity:         r.Capacity,
		Schedule:         r.Schedule,
		RegistrationType: r.RegistrationType,
		ExternalLink:     r.ExternalLink,
		EnrollmentCount:  r.EnrollmentCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		class.Location.Coordinates = &models.Coordinates{Lat: r.Latitude.Float64, Lng: r.Longitude.Float64}
	}
	if class.Schedule == nil {
		class.Schedule = models.Schedule{}
	}
	return class
}

// ClassRepository persists class offerings.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching the store-side filters with active enrollment counts,
// newest first. The time-of-day filter is not applied here.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassOffering, error) {
	var conditions []string
	var args []interface{}

	if city := strings.TrimSpace(filter.City); city != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.city) = LOWER($%d)", len(args)+1))
		args = append(args, city)
	}
	if filter.Gender != "" {
		conditions = append(conditions, fmt.Sprintf("c.target_gender IN ($%d, 'any')", len(args)+1))
		args = append(args, strings.ToLower(filter.Gender))
	}
	if filter.MaxAge != nil {
		conditions = append(conditions, fmt.Sprintf("c.age_min <= $%d", len(args)+1))
		args = append(args, *filter.MaxAge)
	}
	if filter.MinAge != nil {
		conditions = append(conditions, fmt.Sprintf("(c.age_max IS NULL OR c.age_max >= $%d)", len(args)+1))
		args = append(args, *filter.MinAge)
	}
	if filter.MaxCost != nil {
		conditions = append(conditions, fmt.Sprintf("c.cost <= $%d", len(args)+1))
		args = append(args, *filter.MaxCost)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("c.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s, COALESCE(r.enrolled, 0) AS enrollment_count %s%s ORDER BY c.created_at DESC`, classColumns, classFrom, clause)

	var rows []classRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	classes := make([]models.ClassOffering, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.model())
	}
	return classes, nil
}

// FindByID returns a class with its active enrollment count.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassOffering, error) {
	query := fmt.Sprintf(`SELECT %s, COALESCE(r.enrolled, 0) AS enrollment_count %s WHERE c.id = $1`, classColumns, classFrom)
	var row classRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	class := row.model()
	return &class, nil
}

// DistinctCities returns the cities that currently have classes, alphabetically.
func (r *ClassRepository) DistinctCities(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT city FROM classes ORDER BY city`
	cities := []string{}
	if err := r.db.SelectContext(ctx, &cities, query); err != nil {
		return nil, fmt.Errorf("list class cities: %w", err)
	}
	return cities, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassOffering) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, title, description, city, address, latitude, longitude, instructor_name,
        instructor_bio, type, cost, target_gender, age_min, age_max, capacity, schedule, registration_type,
        external_link, created_at, updated_at)
        VALUES (:id, :title, :description, :city, :address, :latitude, :longitude, :instructor_name,
        :instructor_bio, :type, :cost, :target_gender, :age_min, :age_max, :capacity, :schedule, :registration_type,
        :external_link, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, newClassRow(class)); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.ClassOffering) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET title = :title, description = :description, city = :city, address = :address,
        latitude = :latitude, longitude = :longitude, instructor_name = :instructor_name, instructor_bio = :instructor_bio,
        type = :type, cost = :cost, target_gender = :target_gender, age_min = :age_min, age_max = :age_max,
        capacity = :capacity, schedule = :schedule, registration_type = :registration_type,
        external_link = :external_link, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, newClassRow(class))
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a class. Registrations and attendance cascade.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return expectAffected(res)
}

// expectAffected converts a zero-row write into sql.ErrNoRows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
