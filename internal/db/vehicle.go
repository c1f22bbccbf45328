package db

import (
	"context"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VehicleFilter narrows a vehicle listing. Zero fields match everything.
type VehicleFilter struct {
	Status      models.VehicleStatus
	VehicleType string
}

func (f VehicleFilter) bson() bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.VehicleType != "" {
		q["vehicle_type"] = f.VehicleType
	}
	return q
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	FindVehicles(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
}

// MongoVehicleCollection implements VehicleCollection for MongoDB.
type MongoVehicleCollection struct {
	Collection *mongo.Collection
}

// FindVehicles queries vehicles ordered by license plate.
func (c *MongoVehicleCollection) FindVehicles(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error) {
	opts := options.Find().SetSort(bson.D{{Key: "license_plate", Value: 1}})
	return findAll[models.Vehicle](ctx, c.Collection, filter.bson(), opts)
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.Vehicle](ctx, c.Collection, bson.M{"_id": oid})
}
