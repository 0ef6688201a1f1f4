package models

import "time"

// Audit actions recorded for admin mutations.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionUserRegister       = "USER_REGISTER"
	AuditActionClassCreate        = "CLASS_CREATE"
	AuditActionClassUpdate        = "CLASS_UPDATE"
	AuditActionClassDelete        = "CLASS_DELETE"
	AuditActionRegistrationUpdate = "REGISTRATION_UPDATE"
	AuditActionRegistrationDelete = "REGISTRATION_DELETE"
	AuditActionAttendanceCreate   = "ATTENDANCE_CREATE"
	AuditActionAttendanceStatus   = "ATTENDANCE_STATUS"
	AuditActionCityCreate         = "CITY_CREATE"
	AuditActionCityUpdate         = "CITY_UPDATE"
	AuditActionCityDelete         = "CITY_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
