package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetassign/core/model"
)

// BatchStep runs one automatic assignment pass.
type BatchStep struct {
	Strategy string   `yaml:"strategy,omitempty"`
	Orders   []string `yaml:"orders,omitempty"`
}

// AssignStep assigns one order to a chosen vehicle.
type AssignStep struct {
	Order   string `yaml:"order"`
	Vehicle string `yaml:"vehicle"`
}

// Expected is one outcome a step must produce, in order. An empty Vehicle
// means the order stays pending; a nil Score is not checked.
type Expected struct {
	Order   string   `yaml:"order"`
	Vehicle string   `yaml:"vehicle,omitempty"`
	Score   *float64 `yaml:"score,omitempty"`
	Reason  string   `yaml:"reason"`
}

// Step is either a batch or a manual assignment.
type Step struct {
	Batch  *BatchStep  `yaml:"batch,omitempty"`
	Assign *AssignStep `yaml:"assign,omitempty"`
	Expect []Expected  `yaml:"expect"`
	// ExpectError is the error class the step must fail with: validation,
	// not_found, conflict, ineligible or dependency_unavailable.
	ExpectError string `yaml:"expect_error,omitempty"`
}

type Scenario struct {
	Name              string          `yaml:"name"`
	Description       string          `yaml:"description,omitempty"`
	MaxActiveMissions *int            `yaml:"max_active_missions,omitempty"`
	Vehicles          []model.Vehicle `yaml:"vehicles"`
	Orders            []model.Order   `yaml:"orders"`
	Steps             []Step          `yaml:"steps"`
	// FinalActive lists active mission counts checked after the last step.
	FinalActive map[string]int `yaml:"final_active,omitempty"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %s has no steps", sc.Name)
	}
	for i, st := range sc.Steps {
		if (st.Batch == nil) == (st.Assign == nil) {
			return fmt.Errorf("scenario %s step %d: exactly one of batch or assign is required", sc.Name, i)
		}
	}
	return nil
}
