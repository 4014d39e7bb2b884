//go:build property

package watcher

import (
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates how the debouncer coalesces event bursts
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	genPath := gen.OneConstOf("registry.yaml", ".mailsmith.yml", "extra.toml", "other.yaml")
	genEvents := gen.SliceOfN(20, gopter.CombineGens(genPath, gen.IntRange(0, 3)).Map(func(v []interface{}) ChangeEvent {
		return ChangeEvent{Path: v[0].(string), Type: EventType(v[1].(int))}
	}))

	flush := func(events []ChangeEvent) []ChangeEvent {
		d := newDebouncer(time.Hour)
		for _, ev := range events {
			d.addEvent(ev)
		}
		d.timer.Stop()
		d.flush()
		select {
		case batch := <-d.output:
			return batch
		default:
			return nil
		}
	}

	properties.Property("one event per path, sorted", prop.ForAll(
		func(events []ChangeEvent) bool {
			batch := flush(events)
			unique := make(map[string]bool)
			for _, ev := range events {
				unique[ev.Path] = true
			}
			if len(batch) != len(unique) {
				return false
			}
			return sort.SliceIsSorted(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
		},
		genEvents,
	))

	properties.Property("the latest event per path wins", prop.ForAll(
		func(events []ChangeEvent) bool {
			latest := make(map[string]EventType)
			for _, ev := range events {
				latest[ev.Path] = ev.Type
			}
			for _, ev := range flush(events) {
				if latest[ev.Path] != ev.Type {
					return false
				}
			}
			return true
		},
		genEvents,
	))

	properties.Property("no events, no batch", prop.ForAll(
		func(delayMs int) bool {
			d := newDebouncer(time.Duration(delayMs) * time.Millisecond)
			d.flush()
			return len(d.output) == 0
		},
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}
