package db

import (
	"context"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// settingsDocID is the _id of the single settings document per collection.
const settingsDocID = "company"

// SettingsCollection defines the interface for company settings.
type SettingsCollection interface {
	GetCompanySettings(ctx context.Context) (*models.CompanySettings, error)
	SaveCompanySettings(ctx context.Context, s models.CompanySettings) error
	GetMaintenanceSettings(ctx context.Context) (*models.CompanyMaintenanceSettings, error)
	SaveMaintenanceSettings(ctx context.Context, s models.CompanyMaintenanceSettings) error
}

// MongoSettingsCollection implements SettingsCollection for MongoDB.
type MongoSettingsCollection struct {
	Company     *mongo.Collection
	Maintenance *mongo.Collection
}

// GetCompanySettings returns ErrNotFound until settings are saved.
func (c *MongoSettingsCollection) GetCompanySettings(ctx context.Context) (*models.CompanySettings, error) {
	return findOne[models.CompanySettings](ctx, c.Company, bson.M{"_id": settingsDocID})
}

// SaveCompanySettings upserts the company settings.
func (c *MongoSettingsCollection) SaveCompanySettings(ctx context.Context, s models.CompanySettings) error {
	s.UpdatedAt = time.Now()
	return upsertSettings(ctx, c.Company, s)
}

// GetMaintenanceSettings returns ErrNotFound until settings are saved.
func (c *MongoSettingsCollection) GetMaintenanceSettings(ctx context.Context) (*models.CompanyMaintenanceSettings, error) {
	return findOne[models.CompanyMaintenanceSettings](ctx, c.Maintenance, bson.M{"_id": settingsDocID})
}

// SaveMaintenanceSettings upserts the maintenance settings.
func (c *MongoSettingsCollection) SaveMaintenanceSettings(ctx context.Context, s models.CompanyMaintenanceSettings) error {
	s.UpdatedAt = time.Now()
	return upsertSettings(ctx, c.Maintenance, s)
}

func upsertSettings(ctx context.Context, c *mongo.Collection, doc interface{}) error {
	if c == nil {
		return ErrNilCollection
	}
	_, err := c.ReplaceOne(ctx, bson.M{"_id": settingsDocID}, doc, options.Replace().SetUpsert(true))
	return err
}
