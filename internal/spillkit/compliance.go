package spillkit

import (
	"sort"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
)

// DefaultCheckIntervalDays applies when the company has no setting.
const DefaultCheckIntervalDays = 30

// Deficiency explains why an item fails inspection.
type Deficiency struct {
	Item     models.TemplateItem
	Reason   models.ItemStatus
	Quantity int
}

// Result is the outcome of evaluating one check.
type Result struct {
	Compliant    bool
	Deficiencies []Deficiency
}

// DeficientItemIDs lists the failing item ids in template order.
func (r Result) DeficientItemIDs() []string {
	ids := make([]string, 0, len(r.Deficiencies))
	for _, d := range r.Deficiencies {
		ids = append(ids, d.Item.ID)
	}
	return ids
}

// Evaluate compares a check with its template. A vehicle without a kit fails
// on every item. An item missing from the check counts as missing; an
// expiration date before today counts as expired regardless of the recorded
// status.
func Evaluate(tmpl models.SpillKitTemplate, check models.VehicleSpillKitCheck, today string) Result {
	var res Result
	for _, item := range tmpl.Items {
		if d, bad := inspect(item, check, today); bad {
			res.Deficiencies = append(res.Deficiencies, d)
		}
	}
	res.Compliant = check.HasKit
	for _, d := range res.Deficiencies {
		if d.Item.Critical || d.Reason != models.ItemLow {
			res.Compliant = false
		}
	}
	return res
}

func inspect(item models.TemplateItem, check models.VehicleSpillKitCheck, today string) (Deficiency, bool) {
	if !check.HasKit {
		return Deficiency{Item: item, Reason: models.ItemMissing}, true
	}
	cond, ok := check.ItemConditions[item.ID]
	if !ok || cond.Status == models.ItemMissing {
		return Deficiency{Item: item, Reason: models.ItemMissing}, true
	}
	if cond.Status == models.ItemExpired || (item.HasExpiration && cond.ExpirationDate != "" && cond.ExpirationDate < today) {
		return Deficiency{Item: item, Reason: models.ItemExpired, Quantity: cond.Quantity}, true
	}
	if cond.Status == models.ItemDamaged {
		return Deficiency{Item: item, Reason: models.ItemDamaged, Quantity: cond.Quantity}, true
	}
	if cond.Status == models.ItemLow || cond.Quantity < item.RequiredQuantity {
		return Deficiency{Item: item, Reason: models.ItemLow, Quantity: cond.Quantity}, true
	}
	return Deficiency{}, false
}

// BuildRestockRequest lists the quantities needed to bring every deficient
// item back to its required quantity. Missing, expired and damaged items are
// replaced in full; low items are topped up.
func BuildRestockRequest(tmpl models.SpillKitTemplate, check models.VehicleSpillKitCheck, today string, now time.Time) models.RestockRequest {
	req := models.RestockRequest{
		CheckID:     check.ID.Hex(),
		VehicleID:   check.VehicleID,
		TemplateID:  check.TemplateID,
		Lines:       []models.RestockLine{},
		GeneratedAt: now,
	}
	for _, d := range Evaluate(tmpl, check, today).Deficiencies {
		qty := d.Item.RequiredQuantity
		if d.Reason == models.ItemLow {
			qty = d.Item.RequiredQuantity - d.Quantity
		}
		if qty <= 0 {
			continue
		}
		line := models.RestockLine{
			ItemID:        d.Item.ID,
			Name:          d.Item.Name,
			Quantity:      qty,
			Reason:        string(d.Reason),
			EstimatedCost: float64(qty) * d.Item.UnitCost,
		}
		req.Lines = append(req.Lines, line)
		req.TotalEstimatedCost += line.EstimatedCost
	}
	sort.SliceStable(req.Lines, func(i, j int) bool { return req.Lines[i].ItemID < req.Lines[j].ItemID })
	return req
}

// NextCheckDue returns the date the next inspection is due.
func NextCheckDue(checkDate string, intervalDays int) (string, error) {
	if intervalDays <= 0 {
		intervalDays = DefaultCheckIntervalDays
	}
	d, err := models.ParseDate(checkDate)
	if err != nil {
		return "", err
	}
	return models.FormatDate(d.AddDate(0, 0, intervalDays)), nil
}
