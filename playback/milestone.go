// Package playback is the client half of the watch reward engine: it builds a
// milestone schedule for a video and tracks playback against it, awarding
// in-session points with a combo multiplier. Session points are never durable;
// only a natural completion reaches the ledger.
package playback

import (
	"math/rand/v2"
)

const (
	MinMilestones = 10
	MaxMilestones = 20

	// MinSlotSeconds is the smallest segment a milestone may own.
	MinSlotSeconds = 1.0

	// baseMinutes of playback are covered by MinMilestones; every further
	// full minute adds one milestone.
	baseMinutes = 4

	specialChance     = 0.2
	tripleChance      = 0.3
	segmentEdgeMargin = 0.1
)

// Milestone is a scheduled reward at a playback offset.
type Milestone struct {
	OffsetSeconds float64 `json:"offsetSeconds"`
	BasePoints    int64   `json:"basePoints"`
	Multiplier    int64   `json:"multiplier"`
	Special       bool    `json:"special"`
	Claimed       bool    `json:"claimed"`
}

// Rand is the randomness GenerateMilestones consumes. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// NewSeededRand returns a reproducible source.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// MilestoneCount is the number of milestones a video gets.
func MilestoneCount(durationSeconds float64, pointBudget int64) int {
	if durationSeconds <= 0 || pointBudget <= 0 {
		return 0
	}

	n := MinMilestones
	if extra := int(durationSeconds/60) - baseMinutes; extra > 0 {
		n += extra
	}
	if n > MaxMilestones {
		n = MaxMilestones
	}

	// slots must not overlap
	if fit := int(durationSeconds / MinSlotSeconds); fit < n {
		n = fit
	}
	if n < 1 {
		n = 1
	}
	// every milestone carries at least one point
	if int64(n) > pointBudget {
		n = int(pointBudget)
	}
	return n
}

// GenerateMilestones builds the reward schedule for one watch. The sum of
// BasePoints always equals pointBudget and offsets are strictly increasing
// within [0, duration).
func GenerateMilestones(durationSeconds float64, pointBudget int64, rng Rand) []Milestone {
	n := MilestoneCount(durationSeconds, pointBudget)
	if n == 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	segment := durationSeconds / float64(n)
	share := pointBudget / int64(n)
	remainder := pointBudget % int64(n)

	milestones := make([]Milestone, n)
	for i := range milestones {
		// stay inside the middle of the segment so neighbours never cluster
		pos := segmentEdgeMargin + (1-2*segmentEdgeMargin)*rng.Float64()
		m := Milestone{
			OffsetSeconds: float64(i)*segment + pos*segment,
			BasePoints:    share,
			Multiplier:    1,
		}
		if int64(i) < remainder {
			m.BasePoints++
		}
		if rng.Float64() < specialChance {
			m.Special = true
			m.Multiplier = 2
			if rng.Float64() < tripleChance {
				m.Multiplier = 3
			}
		}
		milestones[i] = m
	}
	return milestones
}

// SumBasePoints totals a schedule.
func SumBasePoints(milestones []Milestone) int64 {
	var total int64
	for _, m := range milestones {
		total += m.BasePoints
	}
	return total
}
