package maintenance

import (
	"fmt"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// Bucket is a named status filter of the maintenance list. Buckets are
// independent predicates, not a partition: a record scheduled for today is
// both BucketScheduled and BucketDueToday.
type Bucket string

const (
	BucketAll       Bucket = "all"
	BucketScheduled Bucket = "scheduled"
	BucketDueToday  Bucket = "due_today"
	BucketOverdue   Bucket = "overdue"
	BucketCompleted Bucket = "completed"
)

// ParseBucket maps a query value to a Bucket. Empty means BucketAll.
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(s); b {
	case "":
		return BucketAll, nil
	case BucketAll, BucketScheduled, BucketDueToday, BucketOverdue, BucketCompleted:
		return b, nil
	}
	return "", fmt.Errorf("unknown status filter %q", s)
}

// Matches reports whether rec belongs to the bucket on the given day.
func (b Bucket) Matches(rec models.MaintenanceRecord, today string) bool {
	open := rec.Status != models.MaintenanceCompleted
	switch b {
	case BucketAll:
		return true
	case BucketScheduled:
		return open && rec.ScheduledDate >= today
	case BucketDueToday:
		return open && rec.ScheduledDate == today
	case BucketOverdue:
		return open && rec.ScheduledDate < today
	case BucketCompleted:
		return !open
	}
	return false
}

// Filter is the Mongo query equivalent of Matches.
func (b Bucket) Filter(today string) bson.M {
	notCompleted := bson.M{"$ne": models.MaintenanceCompleted}
	switch b {
	case BucketScheduled:
		return bson.M{"scheduled_date": bson.M{"$gte": today}, "status": notCompleted}
	case BucketDueToday:
		return bson.M{"scheduled_date": today, "status": notCompleted}
	case BucketOverdue:
		return bson.M{"scheduled_date": bson.M{"$lt": today}, "status": notCompleted}
	case BucketCompleted:
		return bson.M{"status": models.MaintenanceCompleted}
	}
	return bson.M{}
}

// IsUpcoming reports whether an open record falls within [today, today+window].
func IsUpcoming(rec models.MaintenanceRecord, today string, windowDays int) bool {
	end, err := AddDays(today, windowDays)
	if err != nil {
		return false
	}
	return rec.Status != models.MaintenanceCompleted &&
		rec.ScheduledDate >= today && rec.ScheduledDate <= end
}

// UpcomingFilter is the Mongo query equivalent of IsUpcoming.
func UpcomingFilter(today string, windowDays int) (bson.M, error) {
	end, err := AddDays(today, windowDays)
	if err != nil {
		return nil, err
	}
	return bson.M{
		"scheduled_date": bson.M{"$gte": today, "$lte": end},
		"status":         bson.M{"$ne": models.MaintenanceCompleted},
	}, nil
}
