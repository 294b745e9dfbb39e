package harness

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/spinforge/aleatest/internal/domain"
)

// StepContext identifies the step being validated in failure messages.
// StepIndex is 0-based; messages print it 1-based.
type StepContext struct {
	Scenario  string
	StepIndex int
	StepType  domain.TransactionType
}

func (c StepContext) describe() string {
	return fmt.Sprintf("scenario %q step %d (%s)", c.Scenario, c.StepIndex+1, c.StepType)
}

// Validate deep-compares the actual response JSON against the expected
// template. Scalar expected values compare strictly; object expected values
// recurse key by key, so a template can pin a nested subset of the response.
// The first mismatch fails with the dotted field path.
func Validate(actual map[string]any, expected *domain.Expectation, ctx StepContext) error {
	if expected == nil {
		return nil
	}
	for _, key := range sortedKeys(expected.Body) {
		if err := compareValue(key, expected.Body[key], actual[key], ctx); err != nil {
			return err
		}
	}
	return nil
}

func compareValue(path string, exp, act any, ctx StepContext) error {
	if expObj, ok := exp.(map[string]any); ok {
		actObj, _ := act.(map[string]any)
		for _, key := range sortedKeys(expObj) {
			var sub any
			if actObj != nil {
				sub = actObj[key]
			}
			if err := compareValue(path+"."+key, expObj[key], sub, ctx); err != nil {
				return err
			}
		}
		return nil
	}

	if exp == nil {
		if act != nil {
			return mismatch(path, exp, act, ctx)
		}
		return nil
	}
	if !reflect.DeepEqual(exp, act) {
		return mismatch(path, exp, act, ctx)
	}
	return nil
}

func mismatch(path string, exp, act any, ctx StepContext) error {
	return domain.ErrAssertion(fmt.Sprintf("%s: field %q mismatch: expected %v, got %v",
		ctx.describe(), path, formatValue(exp), formatValue(act)))
}

func formatValue(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v", v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
