package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Severity of a spill incident.
type Severity string

const (
	SeverityMinor      Severity = "minor"
	SeverityModerate   Severity = "moderate"
	SeverityMajor      Severity = "major"
	SeverityReportable Severity = "reportable"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeverityMajor, SeverityReportable:
		return true
	}
	return false
}

// IncidentStatus is the review state of a spill incident report.
type IncidentStatus string

const (
	IncidentPendingReview      IncidentStatus = "pending_review"
	IncidentOpen               IncidentStatus = "open"
	IncidentUnderInvestigation IncidentStatus = "under_investigation"
	IncidentClosed             IncidentStatus = "closed"
)

func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentPendingReview, IncidentOpen, IncidentUnderInvestigation, IncidentClosed:
		return true
	}
	return false
}

// SpillIncidentReport is a reported spill involving a fleet vehicle.
type SpillIncidentReport struct {
	ID                             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SubmissionKey                  string             `json:"submission_key,omitempty" bson:"submission_key,omitempty"`
	VehicleID                      string             `json:"vehicle_id" bson:"vehicle_id"`
	DriverID                       string             `json:"driver_id" bson:"driver_id"`
	SpillType                      string             `json:"spill_type" bson:"spill_type"`
	LocationDescription            string             `json:"location_description" bson:"location_description"`
	Location                       *Location          `json:"location,omitempty" bson:"location,omitempty"`
	CauseDescription               string             `json:"cause_description" bson:"cause_description"`
	EstimatedVolume                float64            `json:"estimated_volume,omitempty" bson:"estimated_volume,omitempty"` // in gallons
	Severity                       Severity           `json:"severity" bson:"severity"`
	Status                         IncidentStatus     `json:"status" bson:"status"`
	ResponsibleParty               string             `json:"responsible_party,omitempty" bson:"responsible_party,omitempty"`
	CleanupActions                 []string           `json:"cleanup_actions" bson:"cleanup_actions"`
	RegulatoryNotificationRequired bool               `json:"regulatory_notification_required" bson:"regulatory_notification_required"`
	RegulatoryNotificationSent     bool               `json:"regulatory_notification_sent" bson:"regulatory_notification_sent"`
	WeatherConditions              string             `json:"weather_conditions,omitempty" bson:"weather_conditions,omitempty"`
	IncidentDate                   time.Time          `json:"incident_date" bson:"incident_date"`
	CreatedAt                      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt                      time.Time          `json:"updated_at" bson:"updated_at"`
}

// IncidentPhoto is a photo attached to an incident report.
type IncidentPhoto struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	IncidentID string             `json:"incident_id" bson:"incident_id"`
	PhotoURL   string             `json:"photo_url" bson:"photo_url"`
	Caption    string             `json:"caption,omitempty" bson:"caption,omitempty"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// IncidentWitness is a witness statement attached to an incident report.
type IncidentWitness struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	IncidentID string             `json:"incident_id" bson:"incident_id"`
	Name       string             `json:"name" bson:"name"`
	Phone      string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Email      string             `json:"email,omitempty" bson:"email,omitempty"`
	Statement  string             `json:"statement,omitempty" bson:"statement,omitempty"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// IncidentDetail is a report together with its child rows.
type IncidentDetail struct {
	SpillIncidentReport `bson:",inline"`
	Photos              []IncidentPhoto   `json:"photos"`
	Witnesses           []IncidentWitness `json:"witnesses"`
}

// PhotoInput is a photo reference submitted with a new incident.
type PhotoInput struct {
	PhotoURL string `json:"photo_url"`
	Caption  string `json:"caption"`
}

// WitnessInput is a witness submitted with a new incident.
type WitnessInput struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Statement string `json:"statement"`
}

// CreateIncidentRequest is the payload of the incident logging flow.
type CreateIncidentRequest struct {
	VehicleID           string         `json:"vehicle_id"`
	DriverID            string         `json:"driver_id"`
	SpillType           string         `json:"spill_type"`
	LocationDescription string         `json:"location_description"`
	Location            *Location      `json:"location"`
	CauseDescription    string         `json:"cause_description"`
	EstimatedVolume     float64        `json:"estimated_volume"`
	Severity            Severity       `json:"severity"`
	ResponsibleParty    string         `json:"responsible_party"`
	CleanupActions      []string       `json:"cleanup_actions"`
	RegulatoryRequired  bool           `json:"regulatory_notification_required"`
	RegulatoryNotified  bool           `json:"regulatory_notification_sent"`
	WeatherConditions   string         `json:"weather_conditions"`
	IncidentDate        *time.Time     `json:"incident_date"`
	Photos              []PhotoInput   `json:"photos"`
	Witnesses           []WitnessInput `json:"witnesses"`
}

func (r *CreateIncidentRequest) Validate() error {
	if strings.TrimSpace(r.VehicleID) == "" || strings.TrimSpace(r.SpillType) == "" ||
		strings.TrimSpace(r.LocationDescription) == "" || r.Severity == "" {
		return invalid("", RequiredFieldsMessage)
	}
	if !r.Severity.Valid() {
		return invalid("severity", "unknown severity")
	}
	if r.Location != nil && !r.Location.Valid() {
		return invalid("location", "coordinates out of range")
	}
	if r.EstimatedVolume < 0 {
		return invalid("estimated_volume", "must not be negative")
	}
	for _, p := range r.Photos {
		if strings.TrimSpace(p.PhotoURL) == "" {
			return invalid("photos", "photo_url is required")
		}
	}
	for _, w := range r.Witnesses {
		if strings.TrimSpace(w.Name) == "" {
			return invalid("witnesses", "name is required")
		}
	}
	return nil
}

// Report builds the incident row. Reportable spills always require a
// regulatory notification; any other severity requires one only when the
// dispatcher flags it.
func (r *CreateIncidentRequest) Report(now time.Time) SpillIncidentReport {
	rep := SpillIncidentReport{
		ID:                             primitive.NewObjectID(),
		VehicleID:                      r.VehicleID,
		DriverID:                       r.DriverID,
		SpillType:                      r.SpillType,
		LocationDescription:            r.LocationDescription,
		Location:                       r.Location,
		CauseDescription:               r.CauseDescription,
		EstimatedVolume:                r.EstimatedVolume,
		Severity:                       r.Severity,
		Status:                         IncidentPendingReview,
		ResponsibleParty:               r.ResponsibleParty,
		CleanupActions:                 r.CleanupActions,
		RegulatoryNotificationRequired: r.RegulatoryRequired || r.Severity == SeverityReportable,
		RegulatoryNotificationSent:     r.RegulatoryNotified,
		WeatherConditions:              r.WeatherConditions,
		IncidentDate:                   now,
		CreatedAt:                      now,
		UpdatedAt:                      now,
	}
	if r.IncidentDate != nil {
		rep.IncidentDate = *r.IncidentDate
	}
	if rep.CleanupActions == nil {
		rep.CleanupActions = []string{}
	}
	return rep
}

// IncidentStatusRequest changes the review state of an incident.
type IncidentStatusRequest struct {
	Status IncidentStatus `json:"status"`
}

func (r *IncidentStatusRequest) Validate() error {
	if !r.Status.Valid() {
		return invalid("status", "unknown status")
	}
	return nil
}
