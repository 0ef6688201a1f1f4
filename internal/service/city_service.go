package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/community-class-api/internal/models"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
)

type cityRepository interface {
	List(ctx context.Context) ([]models.City, error)
	FindByID(ctx context.Context, id string) (*models.City, error)
	Create(ctx context.Context, city *models.City) error
	Update(ctx context.Context, city *models.City) error
	Delete(ctx context.Context, id string) error
}

// CityRequest is the payload for creating or updating a city.
type CityRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	ImageURL string `json:"imageUrl" validate:"omitempty,max=500"`
}

// CityService manages city metadata.
type CityService struct {
	repo      cityRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
}

// NewCityService constructs the service.
func NewCityService(repo cityRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *CityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CityService{repo: repo, cache: cache, validator: ensureValidator(validate), logger: logger, ttl: ttl}
}

// List returns every city ordered by name.
func (s *CityService) List(ctx context.Context) ([]models.City, bool, error) {
	var cached []models.City
	if s.cache.Get(ctx, cacheKeyCities, &cached) {
		return cached, true, nil
	}
	cities, err := s.repo.List(ctx)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to list cities")
	}
	s.cache.Set(ctx, cacheKeyCities, cities, s.ttl)
	return cities, false, nil
}

// Create adds a city. Names are unique.
func (s *CityService) Create(ctx context.Context, req CityRequest) (*models.City, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid city payload")
	}
	city := &models.City{Name: strings.TrimSpace(req.Name), ImageURL: strings.TrimSpace(req.ImageURL)}
	if err := s.repo.Create(ctx, city); err != nil {
		if errors.Is(err, models.ErrCityExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "city already exists")
		}
		return nil, appErrors.Store(err, "failed to create city")
	}
	s.cache.Invalidate(ctx, cacheCityListPattern)
	return city, nil
}

// Update renames a city or replaces its image.
func (s *CityService) Update(ctx context.Context, id string, req CityRequest) (*models.City, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid city payload")
	}
	if err := requireID(id, "city id"); err != nil {
		return nil, err
	}
	city, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("city not found")
		}
		return nil, appErrors.Store(err, "failed to load city")
	}

	city.Name = strings.TrimSpace(req.Name)
	city.ImageURL = strings.TrimSpace(req.ImageURL)
	if err := s.repo.Update(ctx, city); err != nil {
		switch {
		case errors.Is(err, models.ErrCityExists):
			return nil, appErrors.Clone(appErrors.ErrConflict, "city already exists")
		case isNotFound(err):
			return nil, notFound("city not found")
		default:
			return nil, appErrors.Store(err, "failed to update city")
		}
	}
	s.cache.Invalidate(ctx, cacheCityListPattern)
	return city, nil
}

// Delete removes a city. Classes keep their city name.
func (s *CityService) Delete(ctx context.Context, id string) error {
	if err := requireID(id, "city id"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return notFound("city not found")
		}
		return appErrors.Store(err, "failed to delete city")
	}
	s.cache.Invalidate(ctx, cacheCityListPattern)
	return nil
}
