package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spinforge/aleatest/internal/domain"
)

// LoadScenarios reads a scenario fixture document from a JSON file. The
// document is a flat array of scenarios; it is validated once at load time
// and treated as immutable afterwards.
func LoadScenarios(path string) ([]domain.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture %s: %w", path, err)
	}
	defer f.Close()

	scenarios, err := ParseScenarios(f)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return scenarios, nil
}

// ParseScenarios decodes and validates a scenario document.
func ParseScenarios(r io.Reader) ([]domain.Scenario, error) {
	var scenarios []domain.Scenario
	dec := json.NewDecoder(r)
	if err := dec.Decode(&scenarios); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}

	seen := make(map[string]bool, len(scenarios))
	for i, sc := range scenarios {
		if sc.TestName == "" {
			return nil, fmt.Errorf("scenario %d: missing testName", i+1)
		}
		if seen[sc.TestName] {
			return nil, fmt.Errorf("duplicate scenario name %q", sc.TestName)
		}
		seen[sc.TestName] = true
		if len(sc.Steps) == 0 {
			return nil, fmt.Errorf("scenario %q: no steps", sc.TestName)
		}
		for j := range sc.Steps {
			if err := sc.Steps[j].Validate(); err != nil {
				return nil, fmt.Errorf("scenario %q step %d: %w", sc.TestName, j+1, err)
			}
		}
	}
	return scenarios, nil
}
