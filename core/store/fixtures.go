package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetassign/core/model"
)

// Fixtures is a YAML document of vehicles and orders used to seed a store.
type Fixtures struct {
	Vehicles []model.Vehicle `yaml:"vehicles"`
	Orders   []model.Order   `yaml:"orders"`
}

// LoadFixtures reads fixtures from a YAML file.
func LoadFixtures(path string) (Fixtures, error) {
	var f Fixtures
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return f, nil
}
