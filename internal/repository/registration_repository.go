package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/pkg/database"
)

const activeRegistrationIndex = "registrations_active_user_class_key"

const registrationColumns = `g.id, g.user_id, g.class_id, g.status, g.registration_date, g.notes, g.created_at, g.updated_at`

// RegistrationRepository persists class registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// CreateWithinCapacity inserts reg while holding a row lock on its class so concurrent
// registrations for the same class are serialised between the seat count and the insert.
// It returns sql.ErrNoRows when the class is missing, models.ErrRegistrationDuplicate when
// the user already holds an active registration and models.ErrClassFull when no seat is
// left and waitlisting is disabled. With waitlisting enabled a full class yields a
// waitlisted registration instead.
func (r *RegistrationRepository) CreateWithinCapacity(ctx context.Context, reg *models.Registration, waitlist bool) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM classes WHERE id = $1 FOR UPDATE`, reg.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock class: %w", err)
	}

	var duplicate bool
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND class_id = $2 AND status IN ` + activeStatusSQL + `)`
	if err = tx.GetContext(ctx, &duplicate, existsQuery, reg.UserID, reg.ClassID); err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	if duplicate {
		err = models.ErrRegistrationDuplicate
		return err
	}

	var active int
	const countQuery = `SELECT COUNT(*) FROM registrations WHERE class_id = $1 AND status IN ` + activeStatusSQL
	if err = tx.GetContext(ctx, &active, countQuery, reg.ClassID); err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}

	reg.Status = models.RegistrationEnrolled
	if active >= capacity {
		if !waitlist {
			err = models.ErrClassFull
			return err
		}
		reg.Status = models.RegistrationWaitlisted
	}

	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	reg.RegistrationDate = now
	reg.CreatedAt = now
	reg.UpdatedAt = now

	const insert = `INSERT INTO registrations (id, user_id, class_id, status, registration_date, notes, created_at, updated_at)
        VALUES (:id, :user_id, :class_id, :status, :registration_date, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, reg); err != nil {
		if database.IsUniqueViolation(err, activeRegistrationIndex) {
			err = models.ErrRegistrationDuplicate
			return err
		}
		return fmt.Errorf("create registration: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

// FindByID returns a registration by id.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations g WHERE g.id = $1`, registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &reg, nil
}

// FindActive returns the user's enrolled or waitlisted registration for a class.
func (r *RegistrationRepository) FindActive(ctx context.Context, userID, classID string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations g
        WHERE g.user_id = $1 AND g.class_id = $2 AND g.status IN %s
        ORDER BY g.registration_date DESC LIMIT 1`, registrationColumns, activeStatusSQL)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, userID, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active registration: %w", err)
	}
	return &reg, nil
}

// ListByClass returns every registration for a class with registrant details, newest first.
func (r *RegistrationRepository) ListByClass(ctx context.Context, classID string) ([]models.ClassRegistration, error) {
	return r.listByClass(ctx, classID, false)
}

// ActiveRoster returns the enrolled and waitlisted registrations for a class.
func (r *RegistrationRepository) ActiveRoster(ctx context.Context, classID string) ([]models.ClassRegistration, error) {
	return r.listByClass(ctx, classID, true)
}

func (r *RegistrationRepository) listByClass(ctx context.Context, classID string, activeOnly bool) ([]models.ClassRegistration, error) {
	clause := ""
	if activeOnly {
		clause = " AND g.status IN " + activeStatusSQL
	}
	query := fmt.Sprintf(`SELECT %s, u.first_name, u.last_name, u.email, u.age, u.gender, u.phone
        FROM registrations g
        JOIN users u ON u.id = g.user_id
        WHERE g.class_id = $1%s
        ORDER BY g.registration_date DESC`, registrationColumns, clause)
	regs := []models.ClassRegistration{}
	if err := r.db.SelectContext(ctx, &regs, query, classID); err != nil {
		return nil, fmt.Errorf("list class registrations: %w", err)
	}
	return regs, nil
}

// ListByUser returns a user's registrations with class details, newest first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]models.UserRegistration, error) {
	query := fmt.Sprintf(`SELECT %s, c.title AS class_title, c.city AS class_city, c.type AS class_type, c.schedule
        FROM registrations g
        JOIN classes c ON c.id = g.class_id
        WHERE g.user_id = $1
        ORDER BY g.registration_date DESC`, registrationColumns)
	regs := []models.UserRegistration{}
	if err := r.db.SelectContext(ctx, &regs, query, userID); err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}
	return regs, nil
}

// Update writes status and notes. Reactivating a registration while another active one
// exists for the same pair yields models.ErrRegistrationDuplicate.
func (r *RegistrationRepository) Update(ctx context.Context, reg *models.Registration) error {
	reg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE registrations SET status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, reg)
	if err != nil {
		if database.IsUniqueViolation(err, activeRegistrationIndex) {
			return models.ErrRegistrationDuplicate
		}
		return fmt.Errorf("update registration: %w", err)
	}
	return expectAffected(res)
}

// Delete hard-deletes a registration.
func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return expectAffected(res)
}
