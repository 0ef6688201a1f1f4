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

const citiesNameKey = "cities_name_key"

// CityRepository persists city metadata.
type CityRepository struct {
	db *sqlx.DB
}

// NewCityRepository constructs the repository.
func NewCityRepository(db *sqlx.DB) *CityRepository {
	return &CityRepository{db: db}
}

// List returns cities ordered by name.
func (r *CityRepository) List(ctx context.Context) ([]models.City, error) {
	const query = `SELECT id, name, image_url, created_at, updated_at FROM cities ORDER BY name`
	cities := []models.City{}
	if err := r.db.SelectContext(ctx, &cities, query); err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	return cities, nil
}

// FindByID returns a city by id.
func (r *CityRepository) FindByID(ctx context.Context, id string) (*models.City, error) {
	const query = `SELECT id, name, image_url, created_at, updated_at FROM cities WHERE id = $1`
	var city models.City
	if err := r.db.GetContext(ctx, &city, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find city: %w", err)
	}
	return &city, nil
}

// Create inserts a city.
func (r *CityRepository) Create(ctx context.Context, city *models.City) error {
	if city.ID == "" {
		city.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	city.CreatedAt = now
	city.UpdatedAt = now
	const query = `INSERT INTO cities (id, name, image_url, created_at, updated_at) VALUES (:id, :name, :image_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, city); err != nil {
		if database.IsUniqueViolation(err, citiesNameKey) {
			return models.ErrCityExists
		}
		return fmt.Errorf("create city: %w", err)
	}
	return nil
}

// Update writes name and image of a city.
func (r *CityRepository) Update(ctx context.Context, city *models.City) error {
	city.UpdatedAt = time.Now().UTC()
	const query = `UPDATE cities SET name = :name, image_url = :image_url, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, city)
	if err != nil {
		if database.IsUniqueViolation(err, citiesNameKey) {
			return models.ErrCityExists
		}
		return fmt.Errorf("update city: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a city.
func (r *CityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete city: %w", err)
	}
	return expectAffected(res)
}
