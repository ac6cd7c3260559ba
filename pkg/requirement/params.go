package requirement

import (
	"fmt"

	"digital.vasic.challengeboard/pkg/challenge"
)

func stringParam(
	spec challenge.RequirementSpec, key string, required bool,
) (string, error) {
	v, ok := spec.Params[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing parameter %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf(
			"parameter %q must be a string, got %T", key, v,
		)
	}
	return s, nil
}

// numberParam reads a positive number, falling back to def
// when the key is absent.
func numberParam(
	spec challenge.RequirementSpec, key string, def float64,
) (float64, error) {
	v, ok := spec.Params[key]
	if !ok || v == nil {
		return def, nil
	}
	n, ok := challenge.ToFloat(v)
	if !ok {
		return 0, fmt.Errorf(
			"parameter %q must be a number, got %T", key, v,
		)
	}
	if n <= 0 {
		return 0, fmt.Errorf("parameter %q must be positive", key)
	}
	return n, nil
}

func mapParam(
	spec challenge.RequirementSpec, key string,
) (map[string]any, error) {
	v, ok := spec.Params[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf(
			"parameter %q must be a mapping, got %T", key, v,
		)
	}
	return m, nil
}
