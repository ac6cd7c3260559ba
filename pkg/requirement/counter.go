package requirement

import (
	"encoding/json"
	"fmt"
	"strconv"

	"digital.vasic.challengeboard/pkg/challenge"
)

// counterState is the persisted form of every built-in
// progression.
type counterState struct {
	Current float64 `json:"current"`
}

// counter accumulates a numeric amount toward a target. The
// step function yields how much an interested event adds.
type counter struct {
	target float64
	step   func(ev *challenge.Event) float64
	format func(v float64) string
	state  counterState
}

func newCounter(
	target float64,
	step func(*challenge.Event) float64,
	format func(float64) string,
) *counter {
	if format == nil {
		format = formatNumber
	}
	return &counter{target: target, step: step, format: format}
}

// Update adds the event's step. The caller only passes events
// the owning requirement declared interest in.
func (c *counter) Update(ev *challenge.Event) bool {
	if ev != nil && !c.Satisfied() {
		if n := c.step(ev); n > 0 {
			c.state.Current += n
		}
		if c.state.Current > c.target {
			c.state.Current = c.target
		}
	}
	return c.Satisfied()
}

func (c *counter) Satisfied() bool {
	return c.state.Current >= c.target
}

func (c *counter) Describe() string {
	return c.format(c.state.Current) + "/" + c.format(c.target)
}

func (c *counter) State() ([]byte, error) {
	return json.Marshal(c.state)
}

func (c *counter) Restore(data []byte) error {
	var s counterState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("restore progression: %w", err)
	}
	if s.Current < 0 {
		s.Current = 0
	}
	c.state = s
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// stepBy returns a step reading attribute by from the event,
// or a constant 1 when by is empty.
func stepBy(by string) func(*challenge.Event) float64 {
	if by == "" {
		return func(*challenge.Event) float64 { return 1 }
	}
	return func(ev *challenge.Event) float64 {
		n, _ := ev.Number(by)
		return n
	}
}
