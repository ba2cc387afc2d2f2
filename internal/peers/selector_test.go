package peers_test

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/peers"
)

func makePeers(n int) []domain.PeerRef {
	out := make([]domain.PeerRef, n)
	for i := range out {
		out[i] = domain.PeerRef{ID: fmt.Sprintf("peer-%02d", i), Address: fmt.Sprintf("10.0.0.%d:50051", i+1)}
	}
	return out
}

func assertDistinct(t *testing.T, got []domain.PeerRef) {
	t.Helper()
	seen := make(map[string]struct{}, len(got))
	for _, p := range got {
		_, dup := seen[p.ID]
		assert.False(t, dup, "duplicate peer %s", p.ID)
		seen[p.ID] = struct{}{}
	}
}

func TestSelectorSelect(t *testing.T) {
	sel := peers.NewSelector("self", rand.New(rand.NewPCG(7, 7)))

	t.Run("k larger than available returns all", func(t *testing.T) {
		available := makePeers(5)
		got, err := sel.Select(available, 10)
		require.NoError(t, err)
		assert.Len(t, got, 5)
		assert.ElementsMatch(t, available, got)
	})

	t.Run("k equal to available returns all in id order", func(t *testing.T) {
		available := makePeers(4)
		available[0], available[3] = available[3], available[0]
		got, err := sel.Select(available, 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"peer-00", "peer-01", "peer-02", "peer-03"}, domain.PeerIDs(got))
	})

	t.Run("k smaller than available returns exactly k distinct", func(t *testing.T) {
		available := makePeers(20)
		got, err := sel.Select(available, 7)
		require.NoError(t, err)
		assert.Len(t, got, 7)
		assertDistinct(t, got)
		for _, p := range got {
			assert.Contains(t, available, p)
		}
	})

	t.Run("self is excluded", func(t *testing.T) {
		available := append(makePeers(3), domain.PeerRef{ID: "self", Address: "127.0.0.1:1"})
		got, err := sel.Select(available, 10)
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assert.NotContains(t, domain.PeerIDs(got), "self")
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		available := append(makePeers(3), makePeers(3)...)
		got, err := sel.Select(available, 10)
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assertDistinct(t, got)
	})

	t.Run("malformed references are skipped", func(t *testing.T) {
		available := append(makePeers(2), domain.PeerRef{ID: "no-address"}, domain.PeerRef{Address: "10.0.0.9:1"})
		got, err := sel.Select(available, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"peer-00", "peer-01"}, domain.PeerIDs(got))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		available := makePeers(10)
		before := append([]domain.PeerRef(nil), available...)
		_, err := sel.Select(available, 3)
		require.NoError(t, err)
		assert.Equal(t, before, available)
	})
}

func TestSelectorInvalidArguments(t *testing.T) {
	sel := peers.NewSelector("self", nil)

	tests := []struct {
		name      string
		available []domain.PeerRef
		k         int
	}{
		{name: "zero k", available: makePeers(3), k: 0},
		{name: "negative k", available: makePeers(3), k: -1},
		{name: "empty available", available: nil, k: 3},
		{name: "only self", available: []domain.PeerRef{{ID: "self", Address: "127.0.0.1:1"}}, k: 1},
		{name: "only malformed", available: []domain.PeerRef{{ID: "p1"}}, k: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sel.Select(tt.available, tt.k)
			require.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Nil(t, got)
		})
	}
}

// TestSelectorSizeProperty checks |select(available,k)| == min(k, |available|)
// with no duplicates and no self across random inputs.
func TestSelectorSizeProperty(t *testing.T) {
	sel := peers.NewSelector("peer-00", rand.New(rand.NewPCG(11, 13)))

	property := func(n, k uint8) bool {
		size := int(n%40) + 1
		want := int(k%50) + 1
		available := makePeers(size)

		got, err := sel.Select(available, want)
		candidates := size - 1 // peer-00 is self
		if candidates == 0 {
			return err != nil
		}
		if err != nil {
			return false
		}
		if len(got) != min(want, candidates) {
			return false
		}
		seen := make(map[string]bool, len(got))
		for _, p := range got {
			if p.ID == "peer-00" || seen[p.ID] {
				return false
			}
			seen[p.ID] = true
		}
		return true
	}

	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 500}))
}

func TestSelectorRoughlyUniform(t *testing.T) {
	sel := peers.NewSelector("", rand.New(rand.NewPCG(3, 5)))
	available := makePeers(10)

	const trials = 20000
	counts := make(map[string]int, len(available))
	for range trials {
		got, err := sel.Select(available, 3)
		require.NoError(t, err)
		for _, p := range got {
			counts[p.ID]++
		}
	}

	// Each peer is expected trials*3/10 = 6000 times.
	for _, p := range available {
		assert.InDelta(t, 6000, counts[p.ID], 400, "peer %s selected %d times", p.ID, counts[p.ID])
	}
}
