package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/community-class-api/internal/models"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassOffering, error)
	FindByID(ctx context.Context, id string) (*models.ClassOffering, error)
	DistinctCities(ctx context.Context) ([]string, error)
	Create(ctx context.Context, class *models.ClassOffering) error
	Update(ctx context.Context, class *models.ClassOffering) error
	Delete(ctx context.Context, id string) error
}

// ClassLocationRequest describes the venue.
type ClassLocationRequest struct {
	Address     string              `json:"address" validate:"required,max=255"`
	Coordinates *models.Coordinates `json:"coordinates"`
}

// InstructorRequest describes who teaches the class.
type InstructorRequest struct {
	Name string  `json:"name" validate:"required,max=150"`
	Bio  *string `json:"bio" validate:"omitempty,max=2000"`
}

// AgeRangeRequest is an inclusive age bracket; Max may be omitted.
type AgeRangeRequest struct {
	Min int  `json:"min" validate:"gte=0,lte=120"`
	Max *int `json:"max" validate:"omitempty,gte=0,lte=120"`
}

// ScheduleEntryRequest is one session. Date accepts RFC3339 or YYYY-MM-DD.
type ScheduleEntryRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

// CreateClassRequest is the payload for listing a new class.
type CreateClassRequest struct {
	Title            string                  `json:"title" validate:"required,max=200"`
	Description      string                  `json:"description" validate:"required"`
	City             string                  `json:"city" validate:"required,max=100"`
	Location         ClassLocationRequest    `json:"location"`
	Instructor       InstructorRequest       `json:"instructor"`
	Type             models.ClassType        `json:"type" validate:"required,class_type"`
	Cost             float64                 `json:"cost" validate:"gte=0,money"`
	TargetGender     models.TargetGender     `json:"targetGender" validate:"omitempty,target_gender"`
	TargetAgeRange   AgeRangeRequest         `json:"targetAgeRange"`
	Capacity         int                     `json:"capacity" validate:"required,gt=0"`
	Schedule         []ScheduleEntryRequest  `json:"schedule" validate:"required,min=1,dive"`
	RegistrationType models.RegistrationType `json:"registrationType" validate:"omitempty,registration_type"`
	ExternalLink     *string                 `json:"externalLink" validate:"omitempty,url"`
}

// UpdateClassRequest carries a partial class update. Nil fields are left untouched.
type UpdateClassRequest struct {
	Title            *string                  `json:"title" validate:"omitempty,min=1,max=200"`
	Description      *string                  `json:"description" validate:"omitempty,min=1"`
	City             *string                  `json:"city" validate:"omitempty,min=1,max=100"`
	Location         *ClassLocationRequest    `json:"location"`
	Instructor       *InstructorRequest       `json:"instructor"`
	Type             *models.ClassType        `json:"type" validate:"omitempty,class_type"`
	Cost             *float64                 `json:"cost" validate:"omitempty,gte=0,money"`
	TargetGender     *models.TargetGender     `json:"targetGender" validate:"omitempty,target_gender"`
	TargetAgeRange   *AgeRangeRequest         `json:"targetAgeRange"`
	Capacity         *int                     `json:"capacity" validate:"omitempty,gt=0"`
	Schedule         []ScheduleEntryRequest   `json:"schedule" validate:"omitempty,min=1,dive"`
	RegistrationType *models.RegistrationType `json:"registrationType" validate:"omitempty,registration_type"`
	ExternalLink     *string                  `json:"externalLink" validate:"omitempty,url"`
}

// ClassServiceConfig tunes catalog caching.
type ClassServiceConfig struct {
	CatalogTTL time.Duration
}

// ClassService serves the class catalog.
type ClassService struct {
	repo      classRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	config    ClassServiceConfig
}

// NewClassService constructs the service.
func NewClassService(repo classRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, config ClassServiceConfig) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, cache: cache, validator: ensureValidator(validate), logger: logger, config: config}
}

// List returns classes matching filter, newest first, and whether the result came from cache.
// The time-of-day bucket is applied after the store query.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassOffering, bool, error) {
	if filter.TimeOfDay != "" && !filter.TimeOfDay.Valid() {
		return nil, false, badRequest("time must be morning, afternoon or evening")
	}
	if filter.Type != "" && filter.Type != models.ClassTypeOneTime && filter.Type != models.ClassTypeOngoing {
		return nil, false, badRequest("type must be one-time or ongoing")
	}

	key := cacheKeyClasses + filter.CacheKey()
	var cached []models.ClassOffering
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	classes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to list classes")
	}
	if filter.TimeOfDay != "" {
		filtered := classes[:0]
		for _, class := range classes {
			if class.MatchesTimeOfDay(filter.TimeOfDay) {
				filtered = append(filtered, class)
			}
		}
		classes = filtered
	}

	s.cache.Set(ctx, key, classes, s.config.CatalogTTL)
	return classes, false, nil
}

// ListByCity is List narrowed to one city.
func (s *ClassService) ListByCity(ctx context.Context, city string) ([]models.ClassOffering, bool, error) {
	if strings.TrimSpace(city) == "" {
		return nil, false, badRequest("city is required")
	}
	return s.List(ctx, models.ClassFilter{City: city})
}

// Cities returns the distinct cities that have classes.
func (s *ClassService) Cities(ctx context.Context) ([]string, bool, error) {
	var cached []string
	if s.cache.Get(ctx, cacheKeyClassCities, &cached) {
		return cached, true, nil
	}
	cities, err := s.repo.DistinctCities(ctx)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to list class cities")
	}
	s.cache.Set(ctx, cacheKeyClassCities, cities, s.config.CatalogTTL)
	return cities, false, nil
}

// Get returns a single class with its enrollment count.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassOffering, error) {
	if err := requireID(id, "class id"); err != nil {
		return nil, err
	}
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("class not found")
		}
		return nil, appErrors.Store(err, "failed to load class")
	}
	return class, nil
}

// Create lists a new class.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.ClassOffering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	schedule, err := buildSchedule(req.Schedule)
	if err != nil {
		return nil, err
	}

	class := &models.ClassOffering{
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		City:             strings.TrimSpace(req.City),
		Location:         models.Location{Address: req.Location.Address, Coordinates: req.Location.Coordinates},
		Instructor:       models.Instructor{Name: req.Instructor.Name, Bio: req.Instructor.Bio},
		Type:             req.Type,
		Cost:             req.Cost,
		TargetGender:     req.TargetGender,
		TargetAgeRange:   models.AgeRange{Min: req.TargetAgeRange.Min, Max: req.TargetAgeRange.Max},
		Capacity:         req.Capacity,
		Schedule:         schedule,
		RegistrationType: req.RegistrationType,
		ExternalLink:     req.ExternalLink,
	}
	if class.TargetGender == "" {
		class.TargetGender = models.TargetGenderAny
	}
	if class.RegistrationType == "" {
		class.RegistrationType = models.RegistrationTypeInternal
	}
	if err := checkClassRules(class); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Store(err, "failed to create class")
	}
	s.cache.InvalidateCatalog(ctx)
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("city", class.City))
	return class, nil
}

// Update applies a partial update. Only provided fields change.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.ClassOffering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		class.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		class.Description = *req.Description
	}
	if req.City != nil {
		class.City = strings.TrimSpace(*req.City)
	}
	if req.Location != nil {
		class.Location = models.Location{Address: req.Location.Address, Coordinates: req.Location.Coordinates}
	}
	if req.Instructor != nil {
		class.Instructor = models.Instructor{Name: req.Instructor.Name, Bio: req.Instructor.Bio}
	}
	if req.Type != nil {
		class.Type = *req.Type
	}
	if req.Cost != nil {
		class.Cost = *req.Cost
	}
	if req.TargetGender != nil {
		class.TargetGender = *req.TargetGender
	}
	if req.TargetAgeRange != nil {
		class.TargetAgeRange = models.AgeRange{Min: req.TargetAgeRange.Min, Max: req.TargetAgeRange.Max}
	}
	if req.Capacity != nil {
		class.Capacity = *req.Capacity
	}
	if req.Schedule != nil {
		schedule, err := buildSchedule(req.Schedule)
		if err != nil {
			return nil, err
		}
		class.Schedule = schedule
	}
	if req.RegistrationType != nil {
		class.RegistrationType = *req.RegistrationType
	}
	if req.ExternalLink != nil {
		class.ExternalLink = req.ExternalLink
	}
	if err := checkClassRules(class); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, class); err != nil {
		if isNotFound(err) {
			return nil, notFound("class not found")
		}
		return nil, appErrors.Store(err, "failed to update class")
	}
	s.cache.InvalidateCatalog(ctx)
	return class, nil
}

// Delete removes a class together with its registrations and attendance.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if err := requireID(id, "class id"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return notFound("class not found")
		}
		return appErrors.Store(err, "failed to delete class")
	}
	s.cache.InvalidateCatalog(ctx)
	s.logger.Info("class deleted", zap.String("class_id", id))
	return nil
}

func buildSchedule(entries []ScheduleEntryRequest) (models.Schedule, error) {
	schedule := make(models.Schedule, 0, len(entries))
	for _, entry := range entries {
		date, err := parseSessionDate(entry.Date)
		if err != nil {
			return nil, validationError(err, "schedule date must be RFC3339 or YYYY-MM-DD")
		}
		schedule = append(schedule, models.ScheduleEntry{Date: date, StartTime: entry.StartTime, EndTime: entry.EndTime})
	}
	return schedule, nil
}

func checkClassRules(class *models.ClassOffering) error {
	if class.Capacity <= 0 {
		return badRequest("capacity must be greater than zero")
	}
	if r := class.TargetAgeRange; r.Max != nil && *r.Max < r.Min {
		return badRequest("targetAgeRange.max must not be below targetAgeRange.min")
	}
	if class.RegistrationType == models.RegistrationTypeExternal && (class.ExternalLink == nil || *class.ExternalLink == "") {
		return badRequest("externalLink is required for external registration")
	}
	return nil
}
