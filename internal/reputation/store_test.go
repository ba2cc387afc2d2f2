package reputation_test

import (
	"math"
	"sync"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/reputation"
)

func rec(id string, score float64) domain.RewardRecord {
	return domain.RewardRecord{PeerID: id, Score: score, Valid: true}
}

func TestApplyRewards_EMA(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := reputation.NewStore(reputation.WithClock(func() time.Time { return fixed }))

	entries, err := s.ApplyRewards([]domain.RewardRecord{rec("a", 1), rec("b", 0)}, 0.1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1.0, entries[0].EMAScore)
	assert.Equal(t, 0.0, entries[1].EMAScore)
	assert.Equal(t, fixed, entries[0].UpdatedAt)

	_, err = s.ApplyRewards([]domain.RewardRecord{rec("a", 0), rec("b", 1)}, 0.1)
	require.NoError(t, err)

	a, ok := s.Get("a")
	require.True(t, ok)
	assert.InDelta(t, 0.9, a, 1e-12)
	b, ok := s.Get("b")
	require.True(t, ok)
	assert.InDelta(t, 0.1, b, 1e-12)

	e, ok := s.Entry("a")
	require.True(t, ok)
	assert.Equal(t, 2, e.Updates)

	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestApplyRewards_TimeoutPeerGetsZero(t *testing.T) {
	s := reputation.NewStore()
	_, err := s.ApplyRewards([]domain.RewardRecord{rec("a", 1), rec("b", 1), rec("c", 1)}, 0.5)
	require.NoError(t, err)

	// b timed out this round and was scored 0.
	_, err = s.ApplyRewards([]domain.RewardRecord{rec("a", 1), rec("b", 0), rec("c", 1)}, 0.5)
	require.NoError(t, err)

	b, _ := s.Get("b")
	assert.InDelta(t, 0.5, b, 1e-12)
	a, _ := s.Get("a")
	assert.Equal(t, 1.0, a)
}

func TestApplyRewards_AlphaOne(t *testing.T) {
	s := reputation.NewStore()
	_, err := s.ApplyRewards([]domain.RewardRecord{rec("a", 0.2)}, 1)
	require.NoError(t, err)
	_, err = s.ApplyRewards([]domain.RewardRecord{rec("a", 0.7)}, 1)
	require.NoError(t, err)
	a, _ := s.Get("a")
	assert.Equal(t, 0.7, a)
}

func TestApplyRewards_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		records []domain.RewardRecord
		alpha   float64
	}{
		{"zero alpha", []domain.RewardRecord{rec("a", 1)}, 0},
		{"negative alpha", []domain.RewardRecord{rec("a", 1)}, -0.1},
		{"alpha above one", []domain.RewardRecord{rec("a", 1)}, 1.01},
		{"nan alpha", []domain.RewardRecord{rec("a", 1)}, math.NaN()},
		{"missing peer id", []domain.RewardRecord{rec("a", 1), rec("", 1)}, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := reputation.NewStore()
			_, err := s.ApplyRewards([]domain.RewardRecord{rec("a", 0.3)}, 0.5)
			require.NoError(t, err)

			_, err = s.ApplyRewards(tt.records, tt.alpha)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)

			a, _ := s.Get("a")
			assert.Equal(t, 0.3, a, "no entry may change on rejection")
			assert.Equal(t, 1, s.Len())
		})
	}
}

func TestApplyRewards_NonFiniteAndOutOfRange(t *testing.T) {
	s := reputation.NewStore()
	_, err := s.ApplyRewards([]domain.RewardRecord{
		rec("nan", math.NaN()),
		rec("inf", math.Inf(1)),
		rec("high", 7),
		rec("low", -3),
	}, 0.1)
	require.NoError(t, err)

	for id, want := range map[string]float64{"nan": 0, "inf": 0, "high": 1, "low": 0} {
		got, ok := s.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, want, got, id)
	}
}

func TestApplyRewards_BoundedProperty(t *testing.T) {
	property := func(scores []float64, alphaSeed uint16) bool {
		alpha := (float64(alphaSeed) + 1) / 65536.0
		s := reputation.NewStore()
		for _, score := range scores {
			if _, err := s.ApplyRewards([]domain.RewardRecord{rec("p", score)}, alpha); err != nil {
				return false
			}
			v, _ := s.Get("p")
			if !domain.IsUnitInterval(v) {
				return false
			}
		}
		return true
	}
	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 300}))
}

func TestSnapshotAndWeights(t *testing.T) {
	s := reputation.NewStore()
	_, err := s.ApplyRewards([]domain.RewardRecord{rec("c", 0.5), rec("a", 0.5), rec("b", 1), rec("z", 0)}, 0.1)
	require.NoError(t, err)

	snap := s.Snapshot()
	ids := make([]string, len(snap))
	for i, e := range snap {
		ids[i] = e.PeerID
	}
	assert.Equal(t, []string{"b", "a", "c", "z"}, ids)

	w := s.Weights()
	assert.InDelta(t, 0.5, w["b"], 1e-12)
	assert.InDelta(t, 0.25, w["a"], 1e-12)
	assert.InDelta(t, 0.25, w["c"], 1e-12)
	assert.Equal(t, 0.0, w["z"])
}

func TestWeights_AllZero(t *testing.T) {
	s := reputation.NewStore()
	_, err := s.ApplyRewards([]domain.RewardRecord{rec("a", 0), rec("b", 0)}, 0.1)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 0, "b": 0}, s.Weights())
	assert.Empty(t, reputation.NewStore().Weights())
}

func TestApplyRewards_Concurrent(t *testing.T) {
	s := reputation.NewStore()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.ApplyRewards([]domain.RewardRecord{rec("shared", float64(i%2))}, 0.1)
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	e, ok := s.Entry("shared")
	require.True(t, ok)
	assert.Equal(t, 50, e.Updates)
	assert.True(t, domain.IsUnitInterval(e.EMAScore))
}
