package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/auth"
	"github.com/portaprosoftware/fleet-compliance/internal/config"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/portaprosoftware/fleet-compliance/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTemplateStore struct {
	upserted []models.SpillKitTemplate
	err      error
}

func (f *fakeTemplateStore) UpsertTemplate(ctx context.Context, tmpl models.SpillKitTemplate) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, tmpl)
	return nil
}

type fakeOwnerStore struct {
	owners    []models.User
	findErr   error
	insertErr error
	inserted  []models.User
}

func (f *fakeOwnerStore) FindUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	return f.owners, f.findErr
}

func (f *fakeOwnerStore) InsertUser(ctx context.Context, user models.User) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, user)
	return nil
}

func TestSeedTemplates(t *testing.T) {
	t.Run("shipped catalog", func(t *testing.T) {
		store := &fakeTemplateStore{}
		require.NoError(t, seedTemplates(context.Background(), store, filepath.Join("..", config.DefaultCatalog)))
		require.NotEmpty(t, store.upserted)

		defaults := 0
		for _, tmpl := range store.upserted {
			if tmpl.IsDefault {
				defaults++
			}
		}
		assert.Equal(t, 1, defaults)
	})

	t.Run("empty path is skipped", func(t *testing.T) {
		store := &fakeTemplateStore{}
		require.NoError(t, seedTemplates(context.Background(), store, ""))
		assert.Empty(t, store.upserted)
	})

	t.Run("missing file", func(t *testing.T) {
		err := seedTemplates(context.Background(), &fakeTemplateStore{}, filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})

	t.Run("store failure names the template", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		catalog := "templates:\n  - name: Van kit\n    vehicle_type: van\n    is_active: true\n    items:\n      - {id: pads, name: Pads, required_quantity: 5}\n"
		require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))

		err := seedTemplates(context.Background(), &fakeTemplateStore{err: errors.New("write failed")}, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Van kit")
	})
}

func TestBootstrapOwner(t *testing.T) {
	svc, err := auth.NewService("bootstrap-test-secret", time.Hour)
	require.NoError(t, err)
	owner := config.BootstrapOwner{Username: "owner", Email: "owner@example.com", Password: "correct-horse"}

	t.Run("creates the first owner", func(t *testing.T) {
		store := &fakeOwnerStore{}
		require.NoError(t, bootstrapOwner(context.Background(), store, svc, owner))
		require.Len(t, store.inserted, 1)

		user := store.inserted[0]
		assert.Equal(t, models.RoleOwner, user.Role)
		assert.True(t, user.IsActive)
		assert.False(t, user.ID.IsZero())
		assert.NotEqual(t, owner.Password, user.PasswordHash)
		assert.True(t, svc.CheckPassword(owner.Password, user.PasswordHash))
	})

	t.Run("existing owner", func(t *testing.T) {
		store := &fakeOwnerStore{owners: []models.User{{Username: "boss", Role: models.RoleOwner}}}
		require.NoError(t, bootstrapOwner(context.Background(), store, svc, owner))
		assert.Empty(t, store.inserted)
	})

	t.Run("disabled", func(t *testing.T) {
		store := &fakeOwnerStore{}
		require.NoError(t, bootstrapOwner(context.Background(), store, svc, config.BootstrapOwner{}))
		assert.Empty(t, store.inserted)
	})

	t.Run("weak password", func(t *testing.T) {
		weak := owner
		weak.Password = "short"
		assert.Error(t, bootstrapOwner(context.Background(), &fakeOwnerStore{}, svc, weak))
	})

	t.Run("username taken", func(t *testing.T) {
		store := &fakeOwnerStore{insertErr: db.ErrDuplicate}
		assert.NoError(t, bootstrapOwner(context.Background(), store, svc, owner))
	})

	t.Run("lookup failure", func(t *testing.T) {
		store := &fakeOwnerStore{findErr: errors.New("timeout")}
		assert.Error(t, bootstrapOwner(context.Background(), store, svc, owner))
	})
}

func TestNewServer(t *testing.T) {
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	svc, err := auth.NewService("server-test-secret-key", time.Hour)
	require.NoError(t, err)

	h := newServer(cfg, &db.Collections{}, svc, notify.NopPublisher{}, nil, metrics.New(),
		func(ctx context.Context) error { return nil })

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"ok"`)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("api needs a token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vehicles", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
