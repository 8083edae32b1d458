package playback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requireWellFormed(t *testing.T, ms []Milestone, duration float64, budget int64) {
	t.Helper()
	require.Equal(t, budget, SumBasePoints(ms))
	for i, m := range ms {
		require.GreaterOrEqual(t, m.OffsetSeconds, 0.0)
		require.Less(t, m.OffsetSeconds, duration)
		require.GreaterOrEqual(t, m.BasePoints, int64(1))
		require.False(t, m.Claimed)
		if i > 0 {
			require.Greater(t, m.OffsetSeconds, ms[i-1].OffsetSeconds, "offset %d not increasing", i)
		}
		switch {
		case !m.Special:
			require.Equal(t, int64(1), m.Multiplier)
		default:
			require.Contains(t, []int64{2, 3}, m.Multiplier)
		}
	}
}

func TestGenerateMilestones_TenMinuteVideo(t *testing.T) {
	ms := GenerateMilestones(600, 200, NewSeededRand(42))

	require.GreaterOrEqual(t, len(ms), 10)
	require.LessOrEqual(t, len(ms), 16)
	requireWellFormed(t, ms, 600, 200)
}

func TestGenerateMilestones_SumEqualsBudget(t *testing.T) {
	rng := NewSeededRand(7)
	durations := []float64{0.5, 1, 3, 9, 10, 11, 59, 60, 240, 301, 600, 1234, 3600, 7200}
	budgets := []int64{1, 2, 7, 10, 13, 99, 100, 200, 1001}

	for _, d := range durations {
		for _, b := range budgets {
			ms := GenerateMilestones(d, b, rng)
			require.NotEmpty(t, ms, "d=%v b=%d", d, b)
			requireWellFormed(t, ms, d, b)
		}
	}
}

func TestGenerateMilestones_CountBounds(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		budget   int64
		want     int
	}{
		{"short clip", 30, 500, 10},
		{"four minutes", 240, 500, 10},
		{"five minutes", 300, 500, 11},
		{"ten minutes", 600, 500, 16},
		{"long video capped", 3600, 500, 20},
		{"too short for ten slots", 6, 500, 6},
		{"sub-second", 0.4, 500, 1},
		{"budget smaller than count", 600, 3, 3},
		{"zero duration", 0, 100, 0},
		{"zero budget", 600, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MilestoneCount(tt.duration, tt.budget))
			require.Len(t, GenerateMilestones(tt.duration, tt.budget, NewSeededRand(1)), tt.want)
		})
	}
}

func TestGenerateMilestones_EvenDistribution(t *testing.T) {
	ms := GenerateMilestones(120, 25, NewSeededRand(3))
	require.Len(t, ms, 10)
	for i, m := range ms {
		if i < 5 {
			require.Equal(t, int64(3), m.BasePoints)
		} else {
			require.Equal(t, int64(2), m.BasePoints)
		}
	}
}

func TestGenerateMilestones_OneOffsetPerSegment(t *testing.T) {
	ms := GenerateMilestones(100, 100, NewSeededRand(11))
	require.Len(t, ms, 10)
	for i, m := range ms {
		lo := float64(i)*10 + 1
		hi := float64(i)*10 + 9
		require.GreaterOrEqual(t, m.OffsetSeconds, lo)
		require.LessOrEqual(t, m.OffsetSeconds, hi)
	}
}

func TestGenerateMilestones_Reproducible(t *testing.T) {
	a := GenerateMilestones(900, 300, NewSeededRand(99))
	b := GenerateMilestones(900, 300, NewSeededRand(99))
	require.Equal(t, a, b)
}

func TestGenerateMilestones_SpecialRate(t *testing.T) {
	rng := NewSeededRand(2024)
	var total, special, triple int
	for i := 0; i < 500; i++ {
		for _, m := range GenerateMilestones(1200, 1000, rng) {
			total++
			if m.Special {
				special++
				if m.Multiplier == 3 {
					triple++
				}
			}
		}
	}
	rate := float64(special) / float64(total)
	require.InDelta(t, 0.2, rate, 0.03)
	require.InDelta(t, 0.3, float64(triple)/float64(special), 0.05)
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestGenerateMilestones_ForcedSpecial(t *testing.T) {
	// 0.1 < 0.2 marks special, 0.1 < 0.3 makes it a triple
	ms := GenerateMilestones(60, 10, fixedRand(0.1))
	for _, m := range ms {
		require.True(t, m.Special)
		require.Equal(t, int64(3), m.Multiplier)
	}

	plain := GenerateMilestones(60, 10, fixedRand(0.5))
	for _, m := range plain {
		require.False(t, m.Special)
		require.Equal(t, int64(1), m.Multiplier)
	}
}
