package maintenance

import (
	"github.com/portaprosoftware/fleet-compliance/internal/models"
)

// ComputeKPIs summarises records for the maintenance dashboard. Cost totals
// cover records completed in today's calendar month.
func ComputeKPIs(records []models.MaintenanceRecord, today string, upcomingWindowDays int) models.MaintenanceKPIs {
	kpis := models.MaintenanceKPIs{UpcomingWindowDays: upcomingWindowDays, Today: today}
	month := ""
	if len(today) >= 7 {
		month = today[:7]
	}
	for _, rec := range records {
		if BucketOverdue.Matches(rec, today) {
			kpis.Overdue++
		}
		if BucketDueToday.Matches(rec, today) {
			kpis.DueToday++
		}
		if IsUpcoming(rec, today, upcomingWindowDays) {
			kpis.Upcoming++
		}
		if rec.Status == models.MaintenanceInProgress {
			kpis.InProgress++
		}
		if rec.Status == models.MaintenanceCompleted && month != "" && len(rec.CompletedDate) >= 7 && rec.CompletedDate[:7] == month {
			kpis.CompletedThisMonth++
			kpis.TotalCostThisMonth += rec.Cost
			kpis.PartsCostThisMonth += rec.PartsCost
			kpis.LaborCostThisMonth += rec.LaborCost
		}
	}
	return kpis
}
