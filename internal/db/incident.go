package db

import (
	"context"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IncidentFilter narrows an incident listing. Zero fields match everything.
type IncidentFilter struct {
	Status    models.IncidentStatus
	Severity  models.Severity
	VehicleID string
	DriverID  string
	From      *time.Time
	To        *time.Time
}

func (f IncidentFilter) bson() bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Severity != "" {
		q["severity"] = f.Severity
	}
	if f.VehicleID != "" {
		q["vehicle_id"] = f.VehicleID
	}
	if f.DriverID != "" {
		q["driver_id"] = f.DriverID
	}
	if f.From != nil || f.To != nil {
		r := bson.M{}
		if f.From != nil {
			r["$gte"] = *f.From
		}
		if f.To != nil {
			r["$lt"] = *f.To
		}
		q["incident_date"] = r
	}
	return q
}

// IncidentCollection defines the interface for spill incident data operations.
type IncidentCollection interface {
	InsertIncident(ctx context.Context, report models.SpillIncidentReport) error
	FindIncidents(ctx context.Context, filter IncidentFilter) ([]models.SpillIncidentReport, error)
	FindIncidentByID(ctx context.Context, id string) (*models.SpillIncidentReport, error)
	FindIncidentBySubmissionKey(ctx context.Context, key string) (*models.SpillIncidentReport, error)
	UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) error
	DeleteIncident(ctx context.Context, id string) error
	InsertPhoto(ctx context.Context, photo models.IncidentPhoto) error
	InsertWitness(ctx context.Context, witness models.IncidentWitness) error
	FindPhotos(ctx context.Context, incidentIDs ...string) ([]models.IncidentPhoto, error)
	FindWitnesses(ctx context.Context, incidentIDs ...string) ([]models.IncidentWitness, error)
}

// MongoIncidentCollection implements IncidentCollection for MongoDB.
type MongoIncidentCollection struct {
	Reports   *mongo.Collection
	Photos    *mongo.Collection
	Witnesses *mongo.Collection
}

// InsertIncident inserts an incident report.
func (c *MongoIncidentCollection) InsertIncident(ctx context.Context, report models.SpillIncidentReport) error {
	return insertOne(ctx, c.Reports, report)
}

// FindIncidents lists incidents, newest first.
func (c *MongoIncidentCollection) FindIncidents(ctx context.Context, filter IncidentFilter) ([]models.SpillIncidentReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "incident_date", Value: -1}})
	return findAll[models.SpillIncidentReport](ctx, c.Reports, filter.bson(), opts)
}

// FindIncidentByID finds an incident by its ID.
func (c *MongoIncidentCollection) FindIncidentByID(ctx context.Context, id string) (*models.SpillIncidentReport, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.SpillIncidentReport](ctx, c.Reports, bson.M{"_id": oid})
}

// FindIncidentBySubmissionKey finds the incident created by an idempotent
// submission.
func (c *MongoIncidentCollection) FindIncidentBySubmissionKey(ctx context.Context, key string) (*models.SpillIncidentReport, error) {
	return findOne[models.SpillIncidentReport](ctx, c.Reports, bson.M{"submission_key": key})
}

// UpdateIncidentStatus sets the review status of an incident.
func (c *MongoIncidentCollection) UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) error {
	return updateByID(ctx, c.Reports, id, bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}})
}

// DeleteIncident deletes an incident and its photos and witnesses.
func (c *MongoIncidentCollection) DeleteIncident(ctx context.Context, id string) error {
	if c.Reports == nil || c.Photos == nil || c.Witnesses == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := c.Reports.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := c.Photos.DeleteMany(ctx, bson.M{"incident_id": id}); err != nil {
		return err
	}
	_, err = c.Witnesses.DeleteMany(ctx, bson.M{"incident_id": id})
	return err
}

// InsertPhoto inserts a photo row.
func (c *MongoIncidentCollection) InsertPhoto(ctx context.Context, photo models.IncidentPhoto) error {
	return insertOne(ctx, c.Photos, photo)
}

// InsertWitness inserts a witness row.
func (c *MongoIncidentCollection) InsertWitness(ctx context.Context, witness models.IncidentWitness) error {
	return insertOne(ctx, c.Witnesses, witness)
}

// FindPhotos lists the photos of the given incidents.
func (c *MongoIncidentCollection) FindPhotos(ctx context.Context, incidentIDs ...string) ([]models.IncidentPhoto, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findAll[models.IncidentPhoto](ctx, c.Photos, bson.M{"incident_id": bson.M{"$in": incidentIDs}}, opts)
}

// FindWitnesses lists the witnesses of the given incidents.
func (c *MongoIncidentCollection) FindWitnesses(ctx context.Context, incidentIDs ...string) ([]models.IncidentWitness, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findAll[models.IncidentWitness](ctx, c.Witnesses, bson.M{"incident_id": bson.M{"$in": incidentIDs}}, opts)
}
