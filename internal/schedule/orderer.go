package schedule

import (
	"errors"
	"fmt"
)

// Phase tags a test case with its position in the configuration group's
// lifecycle.
type Phase int

const (
	// PhasePrimary test cases consume the probe during its normal run.
	PhasePrimary Phase = iota
	// PhasePosthoc test cases assert on residual state and must run only
	// after every primary test case of the same configuration.
	PhasePosthoc
)

func (p Phase) String() string {
	switch p {
	case PhasePrimary:
		return "primary"
	case PhasePosthoc:
		return "posthoc"
	default:
		return "unknown"
	}
}

// Item is one schedulable test case descriptor.
type Item interface {
	// ConfigKey is the identity of the item's configuration.
	ConfigKey() string
	// Posthoc reports whether the item belongs to the posthoc phase.
	Posthoc() bool
	// Describe names the item for error messages.
	Describe() string
}

// ErrNoPrimaryRun is returned when a posthoc item has no primary test cases
// for its configuration anywhere in the list. This aborts scheduling: the
// posthoc item would otherwise run against a probe that was never created,
// or silently drift to the end of the run.
var ErrNoPrimaryRun = errors.New("posthoc test case has no matching primary run")

// Order rewrites an arbitrarily interleaved test list into the total order
// the executor requires:
//
//  1. test cases sharing a configuration form one contiguous region,
//  2. within a region every primary case precedes every posthoc case,
//  3. only posthoc items move; everything else keeps its discovered order.
//
// Posthoc items are removed and reinserted immediately after the maximal
// contiguous run of items sharing their configuration. Because an inserted
// posthoc item itself extends that run, multiple posthoc items for one
// configuration land in their original relative order.
func Order[T Item](items []T) ([]T, error) {
	retained := make([]T, 0, len(items))
	var posthoc []T
	for _, item := range items {
		if item.Posthoc() {
			posthoc = append(posthoc, item)
		} else {
			retained = append(retained, item)
		}
	}

	for _, inserting := range posthoc {
		key := inserting.ConfigKey()
		found := false
		inserted := false

		for i, existing := range retained {
			if existing.ConfigKey() == key {
				// Somewhere inside the block of like-configured
				// items; they all appear together.
				found = true
			} else if found {
				// Just walked past the end of the group. Insert
				// here, pushing differently configured items back.
				retained = append(retained[:i], append([]T{inserting}, retained[i:]...)...)
				inserted = true
				break
			}
		}

		if !inserted {
			if !found {
				return nil, fmt.Errorf("%w: %s (configuration %s)",
					ErrNoPrimaryRun, inserting.Describe(), key)
			}
			// The group sits at the very end of the list.
			retained = append(retained, inserting)
		}
	}

	return retained, nil
}

// Groups partitions an ordered list into contiguous configuration groups.
// A configuration reappearing after a different one intervened would break
// the probe lifecycle (the fixture would be torn down and resurrected), so
// that is rejected rather than tolerated.
func Groups[T Item](ordered []T) ([][]T, error) {
	var groups [][]T
	seen := make(map[string]bool)

	for _, item := range ordered {
		key := item.ConfigKey()
		if n := len(groups); n > 0 && groups[n-1][0].ConfigKey() == key {
			groups[n-1] = append(groups[n-1], item)
			continue
		}
		if seen[key] {
			return nil, fmt.Errorf("configuration %s is not contiguous: %s restarts a finished group",
				key, item.Describe())
		}
		seen[key] = true
		groups = append(groups, []T{item})
	}

	return groups, nil
}
