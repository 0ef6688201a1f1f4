package models

import (
	"errors"
	"time"
)

// RegistrationStatus represents the lifecycle of a class registration.
type RegistrationStatus string

const (
	RegistrationEnrolled         RegistrationStatus = "enrolled"
	RegistrationWaitlisted       RegistrationStatus = "waitlisted"
	RegistrationCancelledByUser  RegistrationStatus = "cancelled_by_user"
	RegistrationCancelledByAdmin RegistrationStatus = "cancelled_by_admin"
)

// Valid reports whether the status is one of the four lifecycle values.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationEnrolled, RegistrationWaitlisted, RegistrationCancelledByUser, RegistrationCancelledByAdmin:
		return true
	default:
		return false
	}
}

// Active reports whether the registration holds (or queues for) a seat.
func (s RegistrationStatus) Active() bool {
	return s == RegistrationEnrolled || s == RegistrationWaitlisted
}

// ActiveRegistrationStatuses lists the statuses counted against capacity.
var ActiveRegistrationStatuses = []RegistrationStatus{RegistrationEnrolled, RegistrationWaitlisted}

// Errors reported by the registration store.
var (
	ErrRegistrationDuplicate = errors.New("active registration already exists")
	ErrClassFull             = errors.New("class is full")
)

// Registration links a user to a class.
type Registration struct {
	ID               string             `db:"id" json:"id"`
	UserID           string             `db:"user_id" json:"userId"`
	ClassID          string             `db:"class_id" json:"classId"`
	Status           RegistrationStatus `db:"status" json:"status"`
	RegistrationDate time.Time          `db:"registration_date" json:"registrationDate"`
	Notes            *string            `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updatedAt"`
}

// ClassRegistration is a registration joined with the registrant's display fields.
type ClassRegistration struct {
	Registration
	FirstName string  `db:"first_name" json:"firstName"`
	LastName  string  `db:"last_name" json:"lastName"`
	Email     string  `db:"email" json:"email"`
	Age       int     `db:"age" json:"age"`
	Gender    Gender  `db:"gender" json:"gender"`
	Phone     *string `db:"phone" json:"phone,omitempty"`
}

// DisplayName joins the registrant's first and last name.
func (r ClassRegistration) DisplayName() string {
	return User{FirstName: r.FirstName, LastName: r.LastName}.DisplayName()
}

// UserRegistration is a registration joined with the class display fields.
type UserRegistration struct {
	Registration
	ClassTitle string    `db:"class_title" json:"classTitle"`
	ClassCity  string    `db:"class_city" json:"classCity"`
	ClassType  ClassType `db:"class_type" json:"classType"`
	Schedule   Schedule  `db:"schedule" json:"schedule"`
}
