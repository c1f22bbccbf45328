package db

import (
	"context"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/maintenance"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaintenanceFilter narrows a maintenance listing. Bucket predicates are
// evaluated against Today, the company-local date.
type MaintenanceFilter struct {
	Bucket    maintenance.Bucket
	Today     string
	VehicleID string
	Priority  models.Priority
	// UpcomingWindowDays, when positive, restricts to open records due
	// between Today and Today plus the window.
	UpcomingWindowDays int
	Limit              int64
	Offset             int64
}

func (f MaintenanceFilter) bson() (bson.M, error) {
	q := bson.M{}
	if f.Bucket != "" {
		q = f.Bucket.Filter(f.Today)
	}
	if f.UpcomingWindowDays > 0 {
		upcoming, err := maintenance.UpcomingFilter(f.Today, f.UpcomingWindowDays)
		if err != nil {
			return nil, err
		}
		for k, v := range upcoming {
			q[k] = v
		}
	}
	if f.VehicleID != "" {
		q["vehicle_id"] = f.VehicleID
	}
	if f.Priority != "" {
		q["priority"] = f.Priority
	}
	return q, nil
}

// MaintenanceCollection defines the interface for maintenance data operations.
type MaintenanceCollection interface {
	InsertMaintenance(ctx context.Context, rec models.MaintenanceRecord) error
	FindMaintenance(ctx context.Context, filter MaintenanceFilter) ([]models.MaintenanceRecord, error)
	FindMaintenanceByID(ctx context.Context, id string) (*models.MaintenanceRecord, error)
	UpdateMaintenanceStatus(ctx context.Context, id string, status models.MaintenanceStatus, completedDate string) error
	DeleteMaintenance(ctx context.Context, id string) error
	FindTaskTypes(ctx context.Context) ([]models.MaintenanceTaskType, error)
	FindVendors(ctx context.Context) ([]models.MaintenanceVendor, error)
}

// MongoMaintenanceCollection implements MaintenanceCollection for MongoDB.
type MongoMaintenanceCollection struct {
	Records   *mongo.Collection
	TaskTypes *mongo.Collection
	Vendors   *mongo.Collection
}

// InsertMaintenance inserts a maintenance record into the collection.
func (c *MongoMaintenanceCollection) InsertMaintenance(ctx context.Context, rec models.MaintenanceRecord) error {
	return insertOne(ctx, c.Records, rec)
}

// FindMaintenance queries maintenance records ordered by scheduled date.
func (c *MongoMaintenanceCollection) FindMaintenance(ctx context.Context, filter MaintenanceFilter) ([]models.MaintenanceRecord, error) {
	q, err := filter.bson()
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit).SetSkip(filter.Offset)
	}
	return findAll[models.MaintenanceRecord](ctx, c.Records, q, opts)
}

// FindMaintenanceByID finds a maintenance record by its ID.
func (c *MongoMaintenanceCollection) FindMaintenanceByID(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.MaintenanceRecord](ctx, c.Records, bson.M{"_id": oid})
}

// UpdateMaintenanceStatus sets the status. An empty completedDate clears it.
func (c *MongoMaintenanceCollection) UpdateMaintenanceStatus(ctx context.Context, id string, status models.MaintenanceStatus, completedDate string) error {
	update := bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now()},
	}
	if completedDate != "" {
		update["$set"].(bson.M)["completed_date"] = completedDate
	} else {
		update["$unset"] = bson.M{"completed_date": ""}
	}
	return updateByID(ctx, c.Records, id, update)
}

// DeleteMaintenance deletes a maintenance record by its ID.
func (c *MongoMaintenanceCollection) DeleteMaintenance(ctx context.Context, id string) error {
	if c.Records == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := c.Records.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindTaskTypes lists active task types by name.
func (c *MongoMaintenanceCollection) FindTaskTypes(ctx context.Context) ([]models.MaintenanceTaskType, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.MaintenanceTaskType](ctx, c.TaskTypes, bson.M{"is_active": true}, opts)
}

// FindVendors lists active vendors by name.
func (c *MongoMaintenanceCollection) FindVendors(ctx context.Context) ([]models.MaintenanceVendor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.MaintenanceVendor](ctx, c.Vendors, bson.M{"is_active": true}, opts)
}
