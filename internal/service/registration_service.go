package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/community-class-api/internal/models"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
)

type registrationRepository interface {
	CreateWithinCapacity(ctx context.Context, reg *models.Registration, waitlist bool) error
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	ListByClass(ctx context.Context, classID string) ([]models.ClassRegistration, error)
	ListByUser(ctx context.Context, userID string) ([]models.UserRegistration, error)
	Update(ctx context.Context, reg *models.Registration) error
	Delete(ctx context.Context, id string) error
}

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.ClassOffering, error)
}

// CreateRegistrationRequest is the payload for registering the caller into a class.
type CreateRegistrationRequest struct {
	ClassID string `json:"classId" validate:"required"`
}

// UpdateRegistrationRequest carries the admin-editable fields of a registration.
type UpdateRegistrationRequest struct {
	Status *models.RegistrationStatus `json:"status" validate:"omitempty,registration_status"`
	Notes  *string                    `json:"notes" validate:"omitempty,max=1000"`
}

// RegistrationServiceConfig holds seat allocation policy.
type RegistrationServiceConfig struct {
	WaitlistEnabled bool
}

// RegistrationService enforces capacity and duplicate rules for class sign-ups.
type RegistrationService struct {
	repo      registrationRepository
	classes   classLookup
	cache     *CacheService
	events    EventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    RegistrationServiceConfig
}

// NewRegistrationService constructs the service.
func NewRegistrationService(
	repo registrationRepository,
	classes classLookup,
	cache *CacheService,
	events EventPublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config RegistrationServiceConfig,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = nopEvents{}
	}
	return &RegistrationService{
		repo:      repo,
		classes:   classes,
		cache:     cache,
		events:    events,
		metrics:   metrics,
		validator: ensureValidator(validate),
		logger:    logger,
		config:    config,
	}
}

// Create registers the principal into a class. The seat count and insert run under a
// lock on the class row.
func (s *RegistrationService) Create(ctx context.Context, principal models.Principal, req CreateRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}
	if err := requireID(req.ClassID, "class id"); err != nil {
		return nil, err
	}

	reg := &models.Registration{UserID: principal.UserID, ClassID: req.ClassID}
	if err := s.repo.CreateWithinCapacity(ctx, reg, s.config.WaitlistEnabled); err != nil {
		switch {
		case isNotFound(err):
			return nil, notFound("class not found")
		case errors.Is(err, models.ErrRegistrationDuplicate):
			s.metrics.RecordRegistration("duplicate")
			return nil, appErrors.Clone(appErrors.ErrConflict, "already registered for this class")
		case errors.Is(err, models.ErrClassFull):
			s.metrics.RecordRegistration("full")
			return nil, appErrors.Clone(appErrors.ErrConflict, "class is full")
		default:
			return nil, appErrors.Store(err, "failed to create registration")
		}
	}

	s.metrics.RecordRegistration(string(reg.Status))
	s.cache.InvalidateCatalog(ctx)
	s.events.Publish(ctx, models.DomainEvent{
		Type:      models.EventRegistrationCreated,
		ActorID:   principal.UserID,
		ClassID:   reg.ClassID,
		SubjectID: reg.ID,
		Data:      map[string]interface{}{"status": reg.Status},
	})
	s.logger.Info("registration created",
		zap.String("registration_id", reg.ID),
		zap.String("class_id", reg.ClassID),
		zap.String("status", string(reg.Status)),
	)
	return reg, nil
}

// CancelMine lets a user cancel their own registration.
func (s *RegistrationService) CancelMine(ctx context.Context, principal models.Principal, id string) (*models.Registration, error) {
	reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.UserID != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another user")
	}

	reg.Status = models.RegistrationCancelledByUser
	if err := s.repo.Update(ctx, reg); err != nil {
		if isNotFound(err) {
			return nil, notFound("registration not found")
		}
		return nil, appErrors.Store(err, "failed to cancel registration")
	}

	s.cache.InvalidateCatalog(ctx)
	s.events.Publish(ctx, models.DomainEvent{
		Type:      models.EventRegistrationCancelled,
		ActorID:   principal.UserID,
		ClassID:   reg.ClassID,
		SubjectID: reg.ID,
	})
	return reg, nil
}

// Update applies an admin edit. Capacity is not re-checked when reactivating.
func (s *RegistrationService) Update(ctx context.Context, principal models.Principal, id string, req UpdateRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration status")
	}
	reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		reg.Status = *req.Status
	}
	if req.Notes != nil {
		reg.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, reg); err != nil {
		switch {
		case isNotFound(err):
			return nil, notFound("registration not found")
		case errors.Is(err, models.ErrRegistrationDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "user already holds an active registration for this class")
		default:
			return nil, appErrors.Store(err, "failed to update registration")
		}
	}

	s.cache.InvalidateCatalog(ctx)
	s.events.Publish(ctx, models.DomainEvent{
		Type:      models.EventRegistrationUpdated,
		ActorID:   principal.UserID,
		ClassID:   reg.ClassID,
		SubjectID: reg.ID,
		Data:      map[string]interface{}{"status": reg.Status},
	})
	return reg, nil
}

// Delete hard-deletes a registration.
func (s *RegistrationService) Delete(ctx context.Context, principal models.Principal, id string) error {
	reg, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, reg.ID); err != nil {
		if isNotFound(err) {
			return notFound("registration not found")
		}
		return appErrors.Store(err, "failed to delete registration")
	}

	s.cache.InvalidateCatalog(ctx)
	s.events.Publish(ctx, models.DomainEvent{
		Type:      models.EventRegistrationDeleted,
		ActorID:   principal.UserID,
		ClassID:   reg.ClassID,
		SubjectID: reg.ID,
	})
	return nil
}

// ListByClass returns a class roster with registrant details, newest first.
func (s *RegistrationService) ListByClass(ctx context.Context, classID string) ([]models.ClassRegistration, error) {
	if err := requireID(classID, "class id"); err != nil {
		return nil, err
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if isNotFound(err) {
			return nil, notFound("class not found")
		}
		return nil, appErrors.Store(err, "failed to load class")
	}
	regs, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list registrations")
	}
	return regs, nil
}

// ListMine returns the principal's registrations with class details, newest first.
func (s *RegistrationService) ListMine(ctx context.Context, principal models.Principal) ([]models.UserRegistration, error) {
	regs, err := s.repo.ListByUser(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list registrations")
	}
	return regs, nil
}

func (s *RegistrationService) load(ctx context.Context, id string) (*models.Registration, error) {
	if err := requireID(id, "registration id"); err != nil {
		return nil, err
	}
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("registration not found")
		}
		return nil, appErrors.Store(err, "failed to load registration")
	}
	return reg, nil
}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, models.DomainEvent) {}
