package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SpillKitTemplate lists the items a spill kit must contain for a vehicle type.
type SpillKitTemplate struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty" yaml:"-"`
	Name        string             `json:"name" bson:"name" yaml:"name"`
	VehicleType string             `json:"vehicle_type,omitempty" bson:"vehicle_type,omitempty" yaml:"vehicle_type"`
	IsDefault   bool               `json:"is_default" bson:"is_default" yaml:"is_default"`
	IsActive    bool               `json:"is_active" bson:"is_active" yaml:"is_active"`
	Items       []TemplateItem     `json:"items" bson:"items" yaml:"items"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at" yaml:"-"`
}

// TemplateItem is one expected spill kit item.
type TemplateItem struct {
	ID               string  `json:"id" bson:"id" yaml:"id"`
	Name             string  `json:"name" bson:"name" yaml:"name"`
	Category         string  `json:"category,omitempty" bson:"category,omitempty" yaml:"category"`
	RequiredQuantity int     `json:"required_quantity" bson:"required_quantity" yaml:"required_quantity"`
	Critical         bool    `json:"critical" bson:"critical" yaml:"critical"`
	HasExpiration    bool    `json:"has_expiration" bson:"has_expiration" yaml:"has_expiration"`
	UnitCost         float64 `json:"unit_cost,omitempty" bson:"unit_cost,omitempty" yaml:"unit_cost"`
}

// ItemStatus is the inspected condition of a kit item.
type ItemStatus string

const (
	ItemPresent ItemStatus = "present"
	ItemMissing ItemStatus = "missing"
	ItemDamaged ItemStatus = "damaged"
	ItemExpired ItemStatus = "expired"
	ItemLow     ItemStatus = "low"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPresent, ItemMissing, ItemDamaged, ItemExpired, ItemLow:
		return true
	}
	return false
}

// ItemCondition records what the inspector found for one template item.
type ItemCondition struct {
	Status         ItemStatus `json:"status" bson:"status"`
	Quantity       int        `json:"quantity" bson:"quantity"`
	ExpirationDate string     `json:"expiration_date,omitempty" bson:"expiration_date,omitempty"`
	Notes          string     `json:"notes,omitempty" bson:"notes,omitempty"`
}

// VehicleSpillKitCheck is one spill kit inspection. Checks are soft deleted.
type VehicleSpillKitCheck struct {
	ID                primitive.ObjectID       `json:"id" bson:"_id,omitempty"`
	SubmissionKey     string                   `json:"submission_key,omitempty" bson:"submission_key,omitempty"`
	VehicleID         string                   `json:"vehicle_id" bson:"vehicle_id"`
	TemplateID        string                   `json:"template_id" bson:"template_id"`
	HasKit            bool                     `json:"has_kit" bson:"has_kit"`
	ItemConditions    map[string]ItemCondition `json:"item_conditions" bson:"item_conditions"`
	Photos            []string                 `json:"photos" bson:"photos"`
	WeatherConditions string                   `json:"weather_conditions,omitempty" bson:"weather_conditions,omitempty"`
	Location          *Location                `json:"location,omitempty" bson:"location,omitempty"`
	CheckedBy         string                   `json:"checked_by" bson:"checked_by"`
	CheckDate         string                   `json:"check_date" bson:"check_date"`
	NextCheckDue      string                   `json:"next_check_due" bson:"next_check_due"`
	Compliant         bool                     `json:"compliant" bson:"compliant"`
	DeficientItems    []string                 `json:"deficient_items" bson:"deficient_items"`
	Notes             string                   `json:"notes,omitempty" bson:"notes,omitempty"`
	DeletedAt         *time.Time               `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
	CreatedAt         time.Time                `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at" bson:"updated_at"`
}

// CreateSpillKitCheckRequest is the payload of the spill kit inspection form.
type CreateSpillKitCheckRequest struct {
	VehicleID         string                   `json:"vehicle_id"`
	TemplateID        string                   `json:"template_id"`
	HasKit            *bool                    `json:"has_kit"`
	ItemConditions    map[string]ItemCondition `json:"item_conditions"`
	Photos            []string                 `json:"photos"`
	WeatherConditions string                   `json:"weather_conditions"`
	Location          *Location                `json:"location"`
	CheckDate         string                   `json:"check_date"`
	Notes             string                   `json:"notes"`
}

func (r *CreateSpillKitCheckRequest) Validate() error {
	if strings.TrimSpace(r.VehicleID) == "" || r.HasKit == nil {
		return invalid("", RequiredFieldsMessage)
	}
	if r.CheckDate != "" && !IsDate(r.CheckDate) {
		return invalid("check_date", "must be a YYYY-MM-DD date")
	}
	if r.Location != nil && !r.Location.Valid() {
		return invalid("location", "coordinates out of range")
	}
	for id, c := range r.ItemConditions {
		if !c.Status.Valid() {
			return invalid("item_conditions."+id, "unknown status")
		}
		if c.Quantity < 0 {
			return invalid("item_conditions."+id, "quantity must not be negative")
		}
		if c.ExpirationDate != "" && !IsDate(c.ExpirationDate) {
			return invalid("item_conditions."+id, "expiration_date must be a YYYY-MM-DD date")
		}
	}
	return nil
}

// RestockLine is one item to reorder.
type RestockLine struct {
	ItemID        string  `json:"item_id" bson:"item_id"`
	Name          string  `json:"name" bson:"name"`
	Quantity      int     `json:"quantity" bson:"quantity"`
	Reason        string  `json:"reason" bson:"reason"`
	EstimatedCost float64 `json:"estimated_cost" bson:"estimated_cost"`
}

// RestockRequest lists the items needed to make a kit compliant again.
type RestockRequest struct {
	CheckID            string        `json:"check_id" bson:"check_id"`
	VehicleID          string        `json:"vehicle_id" bson:"vehicle_id"`
	TemplateID         string        `json:"template_id" bson:"template_id"`
	Lines              []RestockLine `json:"lines" bson:"lines"`
	TotalEstimatedCost float64       `json:"total_estimated_cost" bson:"total_estimated_cost"`
	GeneratedAt        time.Time     `json:"generated_at" bson:"generated_at"`
}
