package models

import (
	"errors"
	"strings"
	"time"
)

// ErrEmailTaken is returned when an insert or update collides with the unique email index.
var ErrEmailTaken = errors.New("email already registered")

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether the role is supported.
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Gender is the self-described gender of a user account.
type Gender string

const (
	GenderMale           Gender = "male"
	GenderFemale         Gender = "female"
	GenderNonBinary      Gender = "non-binary"
	GenderPreferNotToSay Gender = "prefer not to say"
)

// Valid reports whether the gender is one of the supported values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNonBinary, GenderPreferNotToSay:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Age          int       `db:"age" json:"age"`
	Gender       Gender    `db:"gender" json:"gender"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	City         *string   `db:"city" json:"city,omitempty"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Gender    *Gender
	City      string
	MinAge    *int
	MaxAge    *int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RegisterUserRequest is the public sign-up payload.
type RegisterUserRequest struct {
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6"`
	Age       int     `json:"age" validate:"required,gt=0,lte=120"`
	Gender    Gender  `json:"gender" validate:"required,gender"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	City      *string `json:"city" validate:"omitempty,max=100"`
}

// UpdateProfileRequest carries optional profile changes. Nil fields are left untouched.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Password  *string `json:"password" validate:"omitempty,min=6"`
	Age       *int    `json:"age" validate:"omitempty,gt=0,lte=120"`
	Gender    *Gender `json:"gender" validate:"omitempty,gender"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	City      *string `json:"city" validate:"omitempty,max=100"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
