// Package spillkit evaluates spill kit inspections against the expected
// kit contents for a vehicle type.
package spillkit

import (
	"errors"
	"fmt"
	"os"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk seed of spill kit templates.
type Catalog struct {
	Templates []models.SpillKitTemplate `yaml:"templates"`
}

var ErrNoTemplate = errors.New("no spill kit template for vehicle")

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) ([]models.SpillKitTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(data []byte) ([]models.SpillKitTemplate, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	defaults := 0
	for i, t := range c.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template %d: name is required", i)
		}
		if t.IsDefault {
			defaults++
		}
		seen := make(map[string]bool, len(t.Items))
		for _, item := range t.Items {
			if item.ID == "" {
				return nil, fmt.Errorf("template %q: item without id", t.Name)
			}
			if seen[item.ID] {
				return nil, fmt.Errorf("template %q: duplicate item %q", t.Name, item.ID)
			}
			seen[item.ID] = true
			if item.RequiredQuantity < 1 {
				return nil, fmt.Errorf("template %q: item %q needs a positive required_quantity", t.Name, item.ID)
			}
		}
	}
	if defaults > 1 {
		return nil, fmt.Errorf("catalog has %d default templates, want at most one", defaults)
	}
	return c.Templates, nil
}

// SelectTemplate picks the active template for a vehicle type, falling back
// to the active default template.
func SelectTemplate(templates []models.SpillKitTemplate, vehicleType string) (models.SpillKitTemplate, error) {
	var fallback *models.SpillKitTemplate
	for i := range templates {
		t := templates[i]
		if !t.IsActive {
			continue
		}
		if vehicleType != "" && t.VehicleType == vehicleType {
			return t, nil
		}
		if t.IsDefault && fallback == nil {
			fallback = &templates[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return models.SpillKitTemplate{}, ErrNoTemplate
}
