package requirement

import (
	"errors"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
)

// DefaultDurationEvent is the event type emitted by the play
// time ticker.
const DefaultDurationEvent = "played"

// Duration accumulates elapsed seconds reported by events
// until Seconds is reached.
//
// Params:
//
//	seconds:   target in seconds (required)
//	event:     event type, default "played"
//	attribute: attribute holding elapsed seconds, default
//	           "seconds"
type Duration struct {
	base
	Seconds   float64
	Attribute string
}

func newDuration(
	spec challenge.RequirementSpec,
) (challenge.Requirement, error) {
	if _, ok := spec.Params["seconds"]; !ok {
		return nil, errors.New(`missing parameter "seconds"`)
	}
	seconds, err := numberParam(spec, "seconds", 0)
	if err != nil {
		return nil, err
	}
	event, err := stringParam(spec, "event", false)
	if err != nil {
		return nil, err
	}
	if event == "" {
		event = DefaultDurationEvent
	}
	attr, err := stringParam(spec, "attribute", false)
	if err != nil {
		return nil, err
	}
	if attr == "" {
		attr = "seconds"
	}
	return &Duration{
		base:      base{name: spec.Name, kind: KindDuration, event: event},
		Seconds:   seconds,
		Attribute: attr,
	}, nil
}

// Interested reports whether ev carries a positive elapsed
// amount.
func (d *Duration) Interested(ev *challenge.Event) bool {
	if !d.matchesType(ev) {
		return false
	}
	n, ok := ev.Number(d.Attribute)
	return ok && n > 0
}

// NewProgression returns a zeroed counter rendered as a
// duration.
func (d *Duration) NewProgression() challenge.Progression {
	return newCounter(d.Seconds, stepBy(d.Attribute), formatSeconds)
}

func formatSeconds(v float64) string {
	return (time.Duration(v * float64(time.Second))).
		Round(time.Second).String()
}
