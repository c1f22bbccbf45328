package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
)

// Actions checked by HasPermission.
const (
	ActionManageUsers          = "manage_users"
	ActionManageSettings       = "manage_settings"
	ActionViewVehicles         = "view_vehicles"
	ActionViewMaintenance      = "view_maintenance"
	ActionManageMaintenance    = "manage_maintenance"
	ActionCreateIncident       = "create_incident"
	ActionViewIncidents        = "view_incidents"
	ActionManageIncidents      = "manage_incidents"
	ActionExportIncidents      = "export_incidents"
	ActionCreateSpillKitCheck  = "create_spill_kit_check"
	ActionViewSpillKitChecks   = "view_spill_kit_checks"
	ActionManageSpillKitChecks = "manage_spill_kit_checks"
)

// User represents a user in the system
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string            `bson:"username" json:"username"`
	Email        string            `bson:"email" json:"email"`
	PasswordHash string            `bson:"password_hash" json:"-"`
	Role         Role              `bson:"role" json:"role"`
	FirstName    string            `bson:"first_name" json:"first_name"`
	LastName     string            `bson:"last_name" json:"last_name"`
	IsActive     bool              `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time        `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// ProfileUpdate carries the profile fields a user may change themselves.
// Empty fields are left as they are.
type ProfileUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (p ProfileUpdate) Empty() bool {
	return p.FirstName == "" && p.LastName == "" && p.Email == ""
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsDriver reports whether the caller gets the driver view (own rows only).
func (c *Claims) IsDriver() bool {
	return c.Role == RoleDriver
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleDispatcher, RoleDriver:
		return true
	default:
		return false
	}
}

// driverActions is everything a driver may do; their incident views are
// further limited to their own reports.
var driverActions = map[string]bool{
	ActionViewVehicles:        true,
	ActionViewMaintenance:     true,
	ActionCreateIncident:      true,
	ActionViewIncidents:       true,
	ActionCreateSpillKitCheck: true,
	ActionViewSpillKitChecks:  true,
}

// Can reports whether the role may perform action.
func (r Role) Can(action string) bool {
	switch r {
	case RoleOwner, RoleAdmin:
		return true
	case RoleDispatcher:
		return action != ActionManageUsers && action != ActionManageSettings
	case RoleDriver:
		return driverActions[action]
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	return u.Role.Can(action)
}
