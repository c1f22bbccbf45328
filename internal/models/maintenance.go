package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaintenanceStatus is the lifecycle state of a maintenance record.
type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "scheduled"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

func (s MaintenanceStatus) Valid() bool {
	switch s {
	case MaintenanceScheduled, MaintenanceInProgress, MaintenanceCompleted, MaintenanceCancelled:
		return true
	}
	return false
}

// Priority of a maintenance record.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TriggerType selects whether the next service is due by date or by mileage.
type TriggerType string

const (
	TriggerDateBased    TriggerType = "date_based"
	TriggerMileageBased TriggerType = "mileage_based"
)

// MaintenanceRecord represents a scheduled or completed service on a vehicle.
type MaintenanceRecord struct {
	ID                      primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID               string             `json:"vehicle_id" bson:"vehicle_id"`
	TaskTypeID              string             `json:"task_type_id,omitempty" bson:"task_type_id,omitempty"`
	VendorID                string             `json:"vendor_id,omitempty" bson:"vendor_id,omitempty"`
	Description             string             `json:"description" bson:"description"`
	ScheduledDate           string             `json:"scheduled_date" bson:"scheduled_date"`
	CompletedDate           string             `json:"completed_date,omitempty" bson:"completed_date,omitempty"`
	Status                  MaintenanceStatus  `json:"status" bson:"status"`
	Priority                Priority           `json:"priority" bson:"priority"`
	Cost                    float64            `json:"cost" bson:"cost"` // in USD
	PartsCost               float64            `json:"parts_cost" bson:"parts_cost"`
	LaborCost               float64            `json:"labor_cost" bson:"labor_cost"`
	NotificationTriggerType TriggerType        `json:"notification_trigger_type" bson:"notification_trigger_type"`
	IntervalType            string             `json:"interval_type,omitempty" bson:"interval_type,omitempty"`
	IntervalValue           int                `json:"interval_value,omitempty" bson:"interval_value,omitempty"`
	NextServiceDate         *string            `json:"next_service_date" bson:"next_service_date"`
	NextServiceMileage      *int               `json:"next_service_mileage" bson:"next_service_mileage"`
	Notes                   string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt               time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at" bson:"updated_at"`
}

// MaintenanceTaskType is a catalog entry such as "Oil change".
type MaintenanceTaskType struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name                 string             `json:"name" bson:"name"`
	Description          string             `json:"description,omitempty" bson:"description,omitempty"`
	DefaultIntervalType  string             `json:"default_interval_type,omitempty" bson:"default_interval_type,omitempty"`
	DefaultIntervalValue int                `json:"default_interval_value,omitempty" bson:"default_interval_value,omitempty"`
	IsActive             bool               `json:"is_active" bson:"is_active"`
}

// MaintenanceVendor is an external service provider.
type MaintenanceVendor struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	ContactName string             `json:"contact_name,omitempty" bson:"contact_name,omitempty"`
	Phone       string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Email       string             `json:"email,omitempty" bson:"email,omitempty"`
	IsActive    bool               `json:"is_active" bson:"is_active"`
}

// MaintenanceKPIs summarises the maintenance dashboard.
type MaintenanceKPIs struct {
	Overdue            int     `json:"overdue"`
	DueToday           int     `json:"due_today"`
	Upcoming           int     `json:"upcoming"`
	InProgress         int     `json:"in_progress"`
	CompletedThisMonth int     `json:"completed_this_month"`
	TotalCostThisMonth float64 `json:"total_cost_this_month"`
	PartsCostThisMonth float64 `json:"parts_cost_this_month"`
	LaborCostThisMonth float64 `json:"labor_cost_this_month"`
	UpcomingWindowDays int     `json:"upcoming_window_days"`
	Today              string  `json:"today"`
}

// RequiredFieldsMessage is shown when a form is submitted incomplete.
const RequiredFieldsMessage = "Please fill in all required fields"

// CreateMaintenanceRequest is the payload of the "Add Maintenance Record" form.
type CreateMaintenanceRequest struct {
	VehicleID               string            `json:"vehicle_id"`
	TaskTypeID              string            `json:"task_type_id"`
	VendorID                string            `json:"vendor_id"`
	Description             string            `json:"description"`
	ScheduledDate           string            `json:"scheduled_date"`
	Status                  MaintenanceStatus `json:"status"`
	Priority                Priority          `json:"priority"`
	Cost                    *float64          `json:"cost"`
	PartsCost               float64           `json:"parts_cost"`
	LaborCost               float64           `json:"labor_cost"`
	NotificationTriggerType TriggerType       `json:"notification_trigger_type"`
	Notes                   string            `json:"notes"`
}

// Validate checks the required fields (vehicle, date, cost) and enum values.
func (r *CreateMaintenanceRequest) Validate() error {
	if strings.TrimSpace(r.VehicleID) == "" || strings.TrimSpace(r.ScheduledDate) == "" || r.Cost == nil {
		return invalid("", RequiredFieldsMessage)
	}
	if !IsDate(r.ScheduledDate) {
		return invalid("scheduled_date", "must be a YYYY-MM-DD date")
	}
	if *r.Cost < 0 || r.PartsCost < 0 || r.LaborCost < 0 {
		return invalid("cost", "must not be negative")
	}
	if r.Status != "" && !r.Status.Valid() {
		return invalid("status", "unknown status")
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return invalid("priority", "unknown priority")
	}
	if r.NotificationTriggerType != "" && r.NotificationTriggerType != TriggerDateBased && r.NotificationTriggerType != TriggerMileageBased {
		return invalid("notification_trigger_type", "unknown trigger type")
	}
	return nil
}

// Record builds the record to insert. Defaults: scheduled, medium, date based.
func (r *CreateMaintenanceRequest) Record(now time.Time) MaintenanceRecord {
	rec := MaintenanceRecord{
		ID:                      primitive.NewObjectID(),
		VehicleID:               r.VehicleID,
		TaskTypeID:              r.TaskTypeID,
		VendorID:                r.VendorID,
		Description:             r.Description,
		ScheduledDate:           r.ScheduledDate,
		Status:                  r.Status,
		Priority:                r.Priority,
		Cost:                    *r.Cost,
		PartsCost:               r.PartsCost,
		LaborCost:               r.LaborCost,
		NotificationTriggerType: r.NotificationTriggerType,
		Notes:                   r.Notes,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if rec.Status == "" {
		rec.Status = MaintenanceScheduled
	}
	if rec.Priority == "" {
		rec.Priority = PriorityMedium
	}
	if rec.NotificationTriggerType == "" {
		rec.NotificationTriggerType = TriggerDateBased
	}
	return rec
}

// RecurringServiceRequest is the payload of the "Add Recurring Service" form.
type RecurringServiceRequest struct {
	VehicleID      string   `json:"vehicle_id"`
	TaskTypeID     string   `json:"task_type_id"`
	VendorID       string   `json:"vendor_id"`
	Description    string   `json:"description"`
	StartDate      string   `json:"start_date"`
	IntervalType   string   `json:"interval_type"`
	IntervalValue  int      `json:"interval_value"`
	CurrentMileage *int     `json:"current_mileage"`
	Priority       Priority `json:"priority"`
	Cost           float64  `json:"cost"`
	Notes          string   `json:"notes"`
}

// Validate checks the fields the interval resolver needs.
func (r *RecurringServiceRequest) Validate() error {
	if strings.TrimSpace(r.VehicleID) == "" || strings.TrimSpace(r.StartDate) == "" ||
		strings.TrimSpace(r.IntervalType) == "" || r.IntervalValue == 0 {
		return invalid("", RequiredFieldsMessage)
	}
	if !IsDate(r.StartDate) {
		return invalid("start_date", "must be a YYYY-MM-DD date")
	}
	if r.IntervalValue < 0 {
		return invalid("interval_value", "must be a positive integer")
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return invalid("priority", "unknown priority")
	}
	if r.Cost < 0 {
		return invalid("cost", "must not be negative")
	}
	return nil
}

// StatusUpdateRequest changes the status of a maintenance record.
type StatusUpdateRequest struct {
	Status MaintenanceStatus `json:"status"`
}

func (r *StatusUpdateRequest) Validate() error {
	if !r.Status.Valid() {
		return invalid("status", "unknown status")
	}
	return nil
}
