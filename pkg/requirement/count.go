package requirement

import (
	"fmt"
	"strings"

	"digital.vasic.challengeboard/pkg/challenge"
)

// Built-in requirement kinds.
const (
	KindCount      = "count"
	KindExpression = "expression"
	KindDuration   = "duration"
)

// base carries the identity shared by the built-in kinds.
type base struct {
	name  string
	kind  string
	event string
}

func (b base) Name() string { return b.name }
func (b base) Kind() string { return b.kind }

// matchesType reports whether ev has the configured type. An
// empty type matches every event.
func (b base) matchesType(ev *challenge.Event) bool {
	return ev != nil && (b.event == "" || ev.Type == b.event)
}

// Count counts events of one type until Amount is reached.
//
// Params:
//
//	event:  event type to count (required)
//	amount: target, default 1
//	where:  attribute filters; a list value matches any item
//	by:     numeric attribute to add instead of 1
type Count struct {
	base
	Amount float64
	Where  map[string]any
	By     string
}

func newCount(
	spec challenge.RequirementSpec,
) (challenge.Requirement, error) {
	event, err := stringParam(spec, "event", true)
	if err != nil {
		return nil, err
	}
	amount, err := numberParam(spec, "amount", 1)
	if err != nil {
		return nil, err
	}
	where, err := mapParam(spec, "where")
	if err != nil {
		return nil, err
	}
	by, err := stringParam(spec, "by", false)
	if err != nil {
		return nil, err
	}
	return &Count{
		base:   base{name: spec.Name, kind: KindCount, event: event},
		Amount: amount,
		Where:  where,
		By:     by,
	}, nil
}

// Interested reports whether ev has the counted type and
// passes every filter.
func (c *Count) Interested(ev *challenge.Event) bool {
	if !c.matchesType(ev) {
		return false
	}
	for key, want := range c.Where {
		got, ok := ev.Attr(key)
		if !ok || !matchAny(got, want) {
			return false
		}
	}
	if c.By != "" {
		_, ok := ev.Number(c.By)
		return ok
	}
	return true
}

// NewProgression returns a zeroed counter.
func (c *Count) NewProgression() challenge.Progression {
	return newCounter(c.Amount, stepBy(c.By), nil)
}

func matchAny(got, want any) bool {
	if list, ok := want.([]any); ok {
		for _, w := range list {
			if looseEqual(got, w) {
				return true
			}
		}
		return false
	}
	return looseEqual(got, want)
}

// looseEqual compares catalog values with event attributes.
// Numbers compare numerically and everything else compares by
// its case-folded string form.
func looseEqual(a, b any) bool {
	fa, okA := numeric(a)
	fb, okB := numeric(b)
	if okA && okB {
		return fa == fb
	}
	return strings.EqualFold(fmt.Sprint(a), fmt.Sprint(b))
}

func numeric(v any) (float64, bool) {
	if _, isString := v.(string); isString {
		return 0, false
	}
	return challenge.ToFloat(v)
}
