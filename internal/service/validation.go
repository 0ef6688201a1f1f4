package service

import (
	"database/sql"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/community-class-api/internal/models"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// maxMoney is the largest amount a NUMERIC(10, 2) column holds.
const maxMoney = 99999999.99

// NewValidator returns a validator with the domain enum tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	registerValidators(v)
	return v
}

func ensureValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return NewValidator()
	}
	registerValidators(v)
	return v
}

func registerValidators(v *validator.Validate) {
	enum := func(valid func(string) bool) validator.Func {
		return func(fl validator.FieldLevel) bool { return valid(fl.Field().String()) }
	}
	_ = v.RegisterValidation("gender", enum(func(s string) bool { return models.Gender(s).Valid() }))
	_ = v.RegisterValidation("class_type", enum(func(s string) bool {
		return models.ClassType(s) == models.ClassTypeOneTime || models.ClassType(s) == models.ClassTypeOngoing
	}))
	_ = v.RegisterValidation("target_gender", enum(func(s string) bool {
		switch models.TargetGender(s) {
		case models.TargetGenderAny, models.TargetGenderMale, models.TargetGenderFemale:
			return true
		}
		return false
	}))
	_ = v.RegisterValidation("registration_type", enum(func(s string) bool {
		return models.RegistrationType(s) == models.RegistrationTypeInternal || models.RegistrationType(s) == models.RegistrationTypeExternal
	}))
	_ = v.RegisterValidation("registration_status", enum(func(s string) bool { return models.RegistrationStatus(s).Valid() }))
	_ = v.RegisterValidation("attendance_status", enum(func(s string) bool { return models.AttendanceStatus(s).Valid() }))
	_ = v.RegisterValidation("hhmm", enum(clockPattern.MatchString))
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool { return validMoney(fl.Field().Float()) })
}

// validMoney accepts amounts with at most two decimal places that fit the cost column.
func validMoney(amount float64) bool {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || math.Abs(amount) > maxMoney {
		return false
	}
	text := strconv.FormatFloat(amount, 'f', -1, 64)
	dot := strings.IndexByte(text, '.')
	return dot < 0 || len(text)-dot-1 <= 2
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func badRequest(message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func notFound(message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, message)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// requireID rejects identifiers that are not UUIDs before they reach the store.
func requireID(id, label string) error {
	if _, err := uuid.Parse(id); err != nil {
		return validationError(err, "invalid "+label)
	}
	return nil
}
