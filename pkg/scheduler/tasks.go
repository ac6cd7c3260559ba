package scheduler

import (
	"context"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/requirement"
	"digital.vasic.challengeboard/pkg/store"
)

// Task names registered by EngineTasks.
const (
	TaskRotation = "rotation"
	TaskRefresh  = "refresh"
	TaskSave     = "save"
	TaskPlayTime = "play-time"
)

// Intervals are the tick multiples of the engine tasks. A
// non-positive value disables the task.
type Intervals struct {
	Rotation int64
	Refresh  int64
	Save     int64
	PlayTime int64
}

// DefaultIntervals checks rotations every 30 seconds, refreshes
// profiles every second and saves every 30 minutes at the
// default tick.
var DefaultIntervals = Intervals{
	Rotation: 600,
	Refresh:  20,
	Save:     36000,
	PlayTime: 20,
}

// EngineTasks returns the periodic engine work. st may be nil,
// in which case nothing is saved.
func EngineTasks(
	e *engine.Engine, st store.Store, iv Intervals, tick time.Duration,
) []Task {
	var tasks []Task
	if iv.Rotation > 0 {
		tasks = append(tasks, Task{
			Name: TaskRotation, Every: iv.Rotation,
			Run: func(context.Context) error {
				e.CheckRotations()
				return nil
			},
		})
	}
	if iv.Refresh > 0 {
		tasks = append(tasks, Task{
			Name: TaskRefresh, Every: iv.Refresh,
			Run: func(context.Context) error {
				e.RefreshProfiles()
				return nil
			},
		})
	}
	if iv.Save > 0 && st != nil {
		tasks = append(tasks, Task{
			Name: TaskSave, Every: iv.Save, Async: true,
			Run: func(ctx context.Context) error {
				return e.Save(ctx, st)
			},
		})
	}
	if iv.PlayTime > 0 {
		seconds := (time.Duration(iv.PlayTime) * tick).Seconds()
		tasks = append(tasks, Task{
			Name: TaskPlayTime, Every: iv.PlayTime,
			Run: func(context.Context) error {
				for _, p := range e.Profiles() {
					if !e.Online(p.ID()) {
						continue
					}
					e.Progress(p.ID(), &challenge.Event{
						Type: requirement.DefaultDurationEvent,
						Attributes: map[string]any{
							"seconds": seconds,
						},
					})
				}
				return nil
			},
		})
	}
	return tasks
}

// Register adds tasks to s.
func Register(s *Scheduler, tasks []Task) error {
	for _, t := range tasks {
		if err := s.Add(t); err != nil {
			return err
		}
	}
	return nil
}
