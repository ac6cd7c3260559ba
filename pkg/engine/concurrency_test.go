package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.challengeboard/pkg/challenge"
)

func TestEngine_ConcurrentTraffic_KeepsSlotsBounded(t *testing.T) {
	pool := []string{"M1", "M2", "M3", "M4", "A1", "A2"}

	for _, policy := range []Policy{PreserveActive, CancelAndReshuffle} {
		t.Run(policy.String(), func(t *testing.T) {
			e, _, rec := newTestEngine(t, WithPolicy(policy))
			l := mustAdd(t, e, listDef(t, "daily", 3, 2, "daily",
				manual(t, "M1"), manual(t, "M2"),
				manual(t, "M3"), manual(t, "M4"),
				auto(t, "A1"), auto(t, "A2"),
			))

			const workers = 8
			const rounds = 60
			var completions atomic.Int64
			var wg sync.WaitGroup

			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					participant := fmt.Sprintf("P%d", w%4)
					for i := 0; i < rounds; i++ {
						id := pool[(w+i)%len(pool)]
						switch i % 6 {
						case 0:
							_ = e.ForceRotate("daily")
						case 1:
							_, _ = e.Select(participant, "daily", challenge.ID(id))
						case 2:
							e.Join(participant)
						case 3:
							n := e.Progress(participant, &challenge.Event{Type: id})
							completions.Add(int64(n))
						case 4:
							e.Snapshot()
						case 5:
							if p, ok := e.Profile(participant); ok {
								completions.Add(int64(p.CheckCompletion("daily")))
								p.AllActive()
							}
							l.VisibleIDs()
						}
					}
				}(w)
			}
			wg.Wait()

			for _, p := range e.Profiles() {
				active := p.Active("daily")
				assert.LessOrEqual(t, len(active), l.MaxActive(), p.ID())
				seen := make(map[challenge.ID]bool)
				for _, g := range active {
					assert.False(t, seen[g.ID()], "duplicate slot %s for %s", g.ID(), p.ID())
					seen[g.ID()] = true
				}
			}
			assert.GreaterOrEqual(t,
				int64(rec.count(EventCompleted, "")), completions.Load())

			profiles, rotations := e.Snapshot()
			require.Len(t, rotations, 1)
			assert.Len(t, rotations[0].Visible, 3)
			assert.Len(t, profiles, len(e.Profiles()))

			require.NoError(t, e.ForceRotate("daily"))
			if policy == CancelAndReshuffle {
				for _, p := range e.Profiles() {
					assert.Empty(t, p.Active("daily"), p.ID())
				}
			}
		})
	}
}
