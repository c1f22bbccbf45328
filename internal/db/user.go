package db

import (
	"context"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserCollection stores accounts. Updates touch only the fields they name so
// a profile edit never races a password change.
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, role models.Role) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateLastLogin(ctx context.Context, id string) error
}

type MongoUserCollection struct {
	Collection *mongo.Collection
}

// InsertUser stores a new, active account. A taken username or email
// surfaces as ErrDuplicate.
func (c *MongoUserCollection) InsertUser(ctx context.Context, user models.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.IsActive = true
	return insertOne(ctx, c.Collection, user)
}

func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.User](ctx, c.Collection, bson.M{"_id": oid})
}

func (c *MongoUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return findOne[models.User](ctx, c.Collection, bson.M{"username": username})
}

func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, c.Collection, bson.M{"email": email})
}

// FindUsers lists active users by name, optionally restricted to one role
// (drivers for the incident driver picker).
func (c *MongoUserCollection) FindUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	filter := bson.M{"is_active": true}
	if role != "" {
		filter["role"] = role
	}
	opts := options.Find().SetSort(bson.D{{Key: "last_name", Value: 1}, {Key: "first_name", Value: 1}})
	return findAll[models.User](ctx, c.Collection, filter, opts)
}

// UpdateProfile sets the non-empty fields of update.
func (c *MongoUserCollection) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	set := bson.M{"updated_at": time.Now()}
	if update.FirstName != "" {
		set["first_name"] = update.FirstName
	}
	if update.LastName != "" {
		set["last_name"] = update.LastName
	}
	if update.Email != "" {
		set["email"] = update.Email
	}
	return updateByID(ctx, c.Collection, id, bson.M{"$set": set})
}

func (c *MongoUserCollection) SetPassword(ctx context.Context, id, passwordHash string) error {
	return updateByID(ctx, c.Collection, id, bson.M{"$set": bson.M{
		"password_hash": passwordHash,
		"updated_at":    time.Now(),
	}})
}

// SetActive enables or disables sign-in for an account.
func (c *MongoUserCollection) SetActive(ctx context.Context, id string, active bool) error {
	return updateByID(ctx, c.Collection, id, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now(),
	}})
}

func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now()
	return updateByID(ctx, c.Collection, id, bson.M{"$set": bson.M{"last_login": now, "updated_at": now}})
}
