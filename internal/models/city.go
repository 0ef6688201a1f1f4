package models

import (
	"errors"
	"time"
)

// ErrCityExists is returned when a city name is already taken.
var ErrCityExists = errors.New("city already exists")

// City holds presentation metadata for a city where classes run.
type City struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ImageURL  string    `db:"image_url" json:"imageUrl"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
