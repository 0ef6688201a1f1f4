package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClassType distinguishes single sessions from recurring courses.
type ClassType string

const (
	ClassTypeOneTime ClassType = "one-time"
	ClassTypeOngoing ClassType = "ongoing"
)

// TargetGender narrows the intended audience of a class.
type TargetGender string

const (
	TargetGenderAny    TargetGender = "any"
	TargetGenderMale   TargetGender = "male"
	TargetGenderFemale TargetGender = "female"
)

// RegistrationType tells clients whether sign-up happens here or on an external site.
type RegistrationType string

const (
	RegistrationTypeInternal RegistrationType = "internal"
	RegistrationTypeExternal RegistrationType = "external"
)

// Instructor describes who teaches a class.
type Instructor struct {
	Name string  `json:"name"`
	Bio  *string `json:"bio,omitempty"`
}

// Coordinates locate a venue on a map.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is the venue of a class.
type Location struct {
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// AgeRange is an inclusive age bracket. A nil Max means no upper bound.
type AgeRange struct {
	Min int  `json:"min"`
	Max *int `json:"max,omitempty"`
}

// Overlaps reports whether the range intersects [min, max].
func (r AgeRange) Overlaps(min, max *int) bool {
	if max != nil && r.Min > *max {
		return false
	}
	if min != nil && r.Max != nil && *r.Max < *min {
		return false
	}
	return true
}

// ScheduleEntry is one dated session with wall-clock start and end times ("HH:MM").
type ScheduleEntry struct {
	Date      time.Time `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
}

// StartHour parses the hour component of StartTime.
func (e ScheduleEntry) StartHour() (int, bool) {
	hour, _, ok := strings.Cut(e.StartTime, ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// Schedule is the ordered list of sessions stored as JSONB.
type Schedule []ScheduleEntry

// Value implements driver.Valuer. The JSON is returned as a string so lib/pq sends it
// as text rather than bytea.
func (s Schedule) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (s *Schedule) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = Schedule{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported schedule type %T", src)
	}
	return json.Unmarshal(raw, s)
}

// TimeOfDay buckets schedule start hours.
type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
)

// Valid reports whether the bucket is known.
func (t TimeOfDay) Valid() bool {
	switch t {
	case TimeOfDayMorning, TimeOfDayAfternoon, TimeOfDayEvening:
		return true
	default:
		return false
	}
}

// Contains reports whether hour falls in the bucket: morning 06-11, afternoon 12-16,
// evening 17-05 wrapping past midnight.
func (t TimeOfDay) Contains(hour int) bool {
	switch t {
	case TimeOfDayMorning:
		return hour >= 6 && hour < 12
	case TimeOfDayAfternoon:
		return hour >= 12 && hour < 17
	case TimeOfDayEvening:
		return hour >= 17 || hour < 6
	default:
		return false
	}
}

// ClassOffering is a class listed in the catalog.
type ClassOffering struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	City             string           `json:"city"`
	Location         Location         `json:"location"`
	Instructor       Instructor       `json:"instructor"`
	Type             ClassType        `json:"type"`
	Cost             float64          `json:"cost"`
	TargetGender     TargetGender     `json:"targetGender"`
	TargetAgeRange   AgeRange         `json:"targetAgeRange"`
	Capacity         int              `json:"capacity"`
	Schedule         Schedule         `json:"schedule"`
	RegistrationType RegistrationType `json:"registrationType"`
	ExternalLink     *string          `json:"externalLink,omitempty"`
	EnrollmentCount  int              `json:"enrollmentCount"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// SeatsLeft returns the remaining capacity, never negative.
func (c ClassOffering) SeatsLeft() int {
	if left := c.Capacity - c.EnrollmentCount; left > 0 {
		return left
	}
	return 0
}

// MatchesTimeOfDay reports whether any schedule entry starts inside the bucket.
func (c ClassOffering) MatchesTimeOfDay(t TimeOfDay) bool {
	for _, entry := range c.Schedule {
		if hour, ok := entry.StartHour(); ok && t.Contains(hour) {
			return true
		}
	}
	return false
}

// ClassFilter defines catalog search criteria. Zero values mean "no constraint".
type ClassFilter struct {
	City      string
	Gender    string
	MinAge    *int
	MaxAge    *int
	MaxCost   *float64
	Type      ClassType
	TimeOfDay TimeOfDay
}

// CacheKey renders the filter into a stable cache key fragment.
func (f ClassFilter) CacheKey() string {
	parts := []string{
		"city=" + strings.ToLower(strings.TrimSpace(f.City)),
		"gender=" + strings.ToLower(f.Gender),
		"type=" + string(f.Type),
		"time=" + string(f.TimeOfDay),
	}
	if f.MinAge != nil {
		parts = append(parts, "min="+strconv.Itoa(*f.MinAge))
	}
	if f.MaxAge != nil {
		parts = append(parts, "max="+strconv.Itoa(*f.MaxAge))
	}
	if f.MaxCost != nil {
		parts = append(parts, "cost="+strconv.FormatFloat(*f.MaxCost, 'f', -1, 64))
	}
	return strings.Join(parts, "&")
}
