package db

import (
	"context"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SpillKitCollection defines the interface for spill kit data operations.
type SpillKitCollection interface {
	InsertCheck(ctx context.Context, check models.VehicleSpillKitCheck) error
	FindChecks(ctx context.Context, vehicleID string) ([]models.VehicleSpillKitCheck, error)
	FindCheckByID(ctx context.Context, id string) (*models.VehicleSpillKitCheck, error)
	FindCheckBySubmissionKey(ctx context.Context, key string) (*models.VehicleSpillKitCheck, error)
	SoftDeleteCheck(ctx context.Context, id string, at time.Time) error
	FindTemplates(ctx context.Context) ([]models.SpillKitTemplate, error)
	FindTemplateByID(ctx context.Context, id string) (*models.SpillKitTemplate, error)
	UpsertTemplate(ctx context.Context, tmpl models.SpillKitTemplate) error
	InsertRestockRequest(ctx context.Context, req models.RestockRequest) error
}

// MongoSpillKitCollection implements SpillKitCollection for MongoDB.
type MongoSpillKitCollection struct {
	Checks    *mongo.Collection
	Templates *mongo.Collection
	Restocks  *mongo.Collection
}

// liveOnly matches checks that have not been soft deleted.
var liveOnly = bson.M{"$exists": false}

// InsertCheck inserts an inspection.
func (c *MongoSpillKitCollection) InsertCheck(ctx context.Context, check models.VehicleSpillKitCheck) error {
	return insertOne(ctx, c.Checks, check)
}

// FindChecks lists live inspections, newest first. An empty vehicleID lists
// every vehicle.
func (c *MongoSpillKitCollection) FindChecks(ctx context.Context, vehicleID string) ([]models.VehicleSpillKitCheck, error) {
	q := bson.M{"deleted_at": liveOnly}
	if vehicleID != "" {
		q["vehicle_id"] = vehicleID
	}
	opts := options.Find().SetSort(bson.D{{Key: "check_date", Value: -1}, {Key: "created_at", Value: -1}})
	return findAll[models.VehicleSpillKitCheck](ctx, c.Checks, q, opts)
}

// FindCheckByID finds a live inspection by its ID.
func (c *MongoSpillKitCollection) FindCheckByID(ctx context.Context, id string) (*models.VehicleSpillKitCheck, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.VehicleSpillKitCheck](ctx, c.Checks, bson.M{"_id": oid, "deleted_at": liveOnly})
}

// FindCheckBySubmissionKey finds the inspection created by an idempotent
// submission, deleted or not.
func (c *MongoSpillKitCollection) FindCheckBySubmissionKey(ctx context.Context, key string) (*models.VehicleSpillKitCheck, error) {
	return findOne[models.VehicleSpillKitCheck](ctx, c.Checks, bson.M{"submission_key": key})
}

// SoftDeleteCheck stamps deleted_at on a live inspection.
func (c *MongoSpillKitCollection) SoftDeleteCheck(ctx context.Context, id string, at time.Time) error {
	if c.Checks == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := c.Checks.UpdateOne(ctx,
		bson.M{"_id": oid, "deleted_at": liveOnly},
		bson.M{"$set": bson.M{"deleted_at": at, "updated_at": at}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindTemplates lists every template.
func (c *MongoSpillKitCollection) FindTemplates(ctx context.Context) ([]models.SpillKitTemplate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.SpillKitTemplate](ctx, c.Templates, bson.M{}, opts)
}

// FindTemplateByID finds a template by its ID.
func (c *MongoSpillKitCollection) FindTemplateByID(ctx context.Context, id string) (*models.SpillKitTemplate, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.SpillKitTemplate](ctx, c.Templates, bson.M{"_id": oid})
}

// UpsertTemplate replaces the template with the same name, or inserts it.
func (c *MongoSpillKitCollection) UpsertTemplate(ctx context.Context, tmpl models.SpillKitTemplate) error {
	if c.Templates == nil {
		return ErrNilCollection
	}
	tmpl.UpdatedAt = time.Now()
	set := bson.M{
		"name":         tmpl.Name,
		"vehicle_type": tmpl.VehicleType,
		"is_default":   tmpl.IsDefault,
		"is_active":    tmpl.IsActive,
		"items":        tmpl.Items,
		"updated_at":   tmpl.UpdatedAt,
	}
	_, err := c.Templates.UpdateOne(ctx, bson.M{"name": tmpl.Name}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

// InsertRestockRequest stores a generated restock request.
func (c *MongoSpillKitCollection) InsertRestockRequest(ctx context.Context, req models.RestockRequest) error {
	return insertOne(ctx, c.Restocks, req)
}
