package handlers

import (
	"context"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/portaprosoftware/fleet-compliance/internal/weather"
	"github.com/stretchr/testify/mock"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockUserCollection) SetPassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUserCollection) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockVehicleCollection is a mock implementation of VehicleCollection
type MockVehicleCollection struct {
	mock.Mock
}

func (m *MockVehicleCollection) FindVehicles(ctx context.Context, filter db.VehicleFilter) ([]models.Vehicle, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

// MockMaintenanceCollection is a mock implementation of MaintenanceCollection
type MockMaintenanceCollection struct {
	mock.Mock
}

func (m *MockMaintenanceCollection) InsertMaintenance(ctx context.Context, rec models.MaintenanceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockMaintenanceCollection) FindMaintenance(ctx context.Context, filter db.MaintenanceFilter) ([]models.MaintenanceRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MaintenanceRecord), args.Error(1)
}

func (m *MockMaintenanceCollection) FindMaintenanceByID(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceRecord), args.Error(1)
}

func (m *MockMaintenanceCollection) UpdateMaintenanceStatus(ctx context.Context, id string, status models.MaintenanceStatus, completedDate string) error {
	args := m.Called(ctx, id, status, completedDate)
	return args.Error(0)
}

func (m *MockMaintenanceCollection) DeleteMaintenance(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMaintenanceCollection) FindTaskTypes(ctx context.Context) ([]models.MaintenanceTaskType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MaintenanceTaskType), args.Error(1)
}

func (m *MockMaintenanceCollection) FindVendors(ctx context.Context) ([]models.MaintenanceVendor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MaintenanceVendor), args.Error(1)
}

// MockIncidentCollection is a mock implementation of IncidentCollection
type MockIncidentCollection struct {
	mock.Mock
}

func (m *MockIncidentCollection) InsertIncident(ctx context.Context, report models.SpillIncidentReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockIncidentCollection) FindIncidents(ctx context.Context, filter db.IncidentFilter) ([]models.SpillIncidentReport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SpillIncidentReport), args.Error(1)
}

func (m *MockIncidentCollection) FindIncidentByID(ctx context.Context, id string) (*models.SpillIncidentReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SpillIncidentReport), args.Error(1)
}

func (m *MockIncidentCollection) FindIncidentBySubmissionKey(ctx context.Context, key string) (*models.SpillIncidentReport, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SpillIncidentReport), args.Error(1)
}

func (m *MockIncidentCollection) UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockIncidentCollection) DeleteIncident(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIncidentCollection) InsertPhoto(ctx context.Context, photo models.IncidentPhoto) error {
	args := m.Called(ctx, photo)
	return args.Error(0)
}

func (m *MockIncidentCollection) InsertWitness(ctx context.Context, witness models.IncidentWitness) error {
	args := m.Called(ctx, witness)
	return args.Error(0)
}

func (m *MockIncidentCollection) FindPhotos(ctx context.Context, incidentIDs ...string) ([]models.IncidentPhoto, error) {
	args := m.Called(ctx, incidentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IncidentPhoto), args.Error(1)
}

func (m *MockIncidentCollection) FindWitnesses(ctx context.Context, incidentIDs ...string) ([]models.IncidentWitness, error) {
	args := m.Called(ctx, incidentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IncidentWitness), args.Error(1)
}

// MockSpillKitCollection is a mock implementation of SpillKitCollection
type MockSpillKitCollection struct {
	mock.Mock
}

func (m *MockSpillKitCollection) InsertCheck(ctx context.Context, check models.VehicleSpillKitCheck) error {
	args := m.Called(ctx, check)
	return args.Error(0)
}

func (m *MockSpillKitCollection) FindChecks(ctx context.Context, vehicleID string) ([]models.VehicleSpillKitCheck, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VehicleSpillKitCheck), args.Error(1)
}

func (m *MockSpillKitCollection) FindCheckByID(ctx context.Context, id string) (*models.VehicleSpillKitCheck, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VehicleSpillKitCheck), args.Error(1)
}

func (m *MockSpillKitCollection) FindCheckBySubmissionKey(ctx context.Context, key string) (*models.VehicleSpillKitCheck, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VehicleSpillKitCheck), args.Error(1)
}

func (m *MockSpillKitCollection) SoftDeleteCheck(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockSpillKitCollection) FindTemplates(ctx context.Context) ([]models.SpillKitTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SpillKitTemplate), args.Error(1)
}

func (m *MockSpillKitCollection) FindTemplateByID(ctx context.Context, id string) (*models.SpillKitTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SpillKitTemplate), args.Error(1)
}

func (m *MockSpillKitCollection) UpsertTemplate(ctx context.Context, tmpl models.SpillKitTemplate) error {
	args := m.Called(ctx, tmpl)
	return args.Error(0)
}

func (m *MockSpillKitCollection) InsertRestockRequest(ctx context.Context, req models.RestockRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockSettingsCollection is a mock implementation of SettingsCollection
type MockSettingsCollection struct {
	mock.Mock
}

func (m *MockSettingsCollection) GetCompanySettings(ctx context.Context) (*models.CompanySettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CompanySettings), args.Error(1)
}

func (m *MockSettingsCollection) SaveCompanySettings(ctx context.Context, s models.CompanySettings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSettingsCollection) GetMaintenanceSettings(ctx context.Context) (*models.CompanyMaintenanceSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CompanyMaintenanceSettings), args.Error(1)
}

func (m *MockSettingsCollection) SaveMaintenanceSettings(ctx context.Context, s models.CompanyMaintenanceSettings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	args := m.Called(ctx, eventType, payload)
	return args.Error(0)
}

func (m *MockPublisher) Close() {}

// MockWeather is a mock WeatherLookup.
type MockWeather struct {
	mock.Mock
}

func (m *MockWeather) Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error) {
	args := m.Called(ctx, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*weather.Conditions), args.Error(1)
}

// fixedCalendar returns a calendar pinned to now in the given timezone.
func fixedCalendar(settings *MockSettingsCollection, tz string, now time.Time) *Calendar {
	c := NewCalendar(settings, tz)
	c.now = func() time.Time { return now }
	return c
}

// noSettings makes every settings lookup fall back to defaults.
func noSettings() *MockSettingsCollection {
	s := new(MockSettingsCollection)
	s.On("GetCompanySettings", mock.Anything).Return(nil, db.ErrNotFound).Maybe()
	s.On("GetMaintenanceSettings", mock.Anything).Return(nil, db.ErrNotFound).Maybe()
	return s
}
