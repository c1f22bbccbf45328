package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleStatus is the operational state of a fleet vehicle.
type VehicleStatus string

const (
	VehicleAvailable          VehicleStatus = "available"
	VehicleActive             VehicleStatus = "active"
	VehicleMaintenance        VehicleStatus = "maintenance"
	VehiclePermanentlyRetired VehicleStatus = "permanently_retired"
)

// Valid reports whether s is a known vehicle status.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleAvailable, VehicleActive, VehicleMaintenance, VehiclePermanentlyRetired:
		return true
	}
	return false
}

// Vehicle represents a fleet vehicle. Vehicles are managed elsewhere in the
// product; this service reads them.
type Vehicle struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LicensePlate   string             `bson:"license_plate" json:"license_plate"`
	Make           string             `bson:"make" json:"make"`
	Model          string             `bson:"model" json:"model"`
	Year           int                `bson:"year" json:"year"`
	VehicleType    string             `bson:"vehicle_type" json:"vehicle_type"`
	Status         VehicleStatus      `bson:"status" json:"status"`
	CurrentMileage *int               `bson:"current_mileage,omitempty" json:"current_mileage,omitempty"`
	VehicleImage   string             `bson:"vehicle_image,omitempty" json:"vehicle_image,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}
