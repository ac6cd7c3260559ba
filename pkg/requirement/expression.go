package requirement

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"digital.vasic.challengeboard/pkg/challenge"
)

// celEnv declares the variables visible to expressions: event
// (the event type), participant, and attrs.
var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Lists(),
		cel.Variable("event", cel.StringType),
		cel.Variable("participant", cel.StringType),
		cel.Variable(
			"attrs", cel.MapType(cel.StringType, cel.DynType),
		),
	)
})

// Expression counts events for which a CEL predicate holds.
//
// Params:
//
//	when:   CEL expression returning bool (required)
//	event:  optional event type pre-filter
//	amount: target, default 1
//	by:     numeric attribute to add instead of 1
type Expression struct {
	base
	When   string
	Amount float64
	By     string

	program cel.Program
}

func newExpression(
	spec challenge.RequirementSpec,
) (challenge.Requirement, error) {
	when, err := stringParam(spec, "when", true)
	if err != nil {
		return nil, err
	}
	event, err := stringParam(spec, "event", false)
	if err != nil {
		return nil, err
	}
	amount, err := numberParam(spec, "amount", 1)
	if err != nil {
		return nil, err
	}
	by, err := stringParam(spec, "by", false)
	if err != nil {
		return nil, err
	}

	prg, err := compilePredicate(when)
	if err != nil {
		return nil, err
	}
	return &Expression{
		base: base{
			name: spec.Name, kind: KindExpression, event: event,
		},
		When:    when,
		Amount:  amount,
		By:      by,
		program: prg,
	}, nil
}

func compilePredicate(src string) (cel.Program, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", src, issues.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) &&
		!out.IsExactType(cel.DynType) {
		return nil, errors.New(
			"expression must evaluate to bool, got " + out.String(),
		)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", src, err)
	}
	return prg, nil
}

// Interested evaluates the predicate against ev. Evaluation
// errors, such as a missing attribute, count as no match.
func (x *Expression) Interested(ev *challenge.Event) bool {
	if !x.matchesType(ev) {
		return false
	}
	attrs := ev.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	out, _, err := x.program.Eval(map[string]any{
		"event":       ev.Type,
		"participant": ev.Participant,
		"attrs":       attrs,
	})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	if !ok || !matched {
		return false
	}
	if x.By != "" {
		_, ok := ev.Number(x.By)
		return ok
	}
	return true
}

// NewProgression returns a zeroed counter.
func (x *Expression) NewProgression() challenge.Progression {
	return newCounter(x.Amount, stepBy(x.By), nil)
}
