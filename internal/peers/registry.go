package peers

import (
	"context"
	"sort"
	"sync"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// Registry lists the peers currently reachable for a round.
type Registry interface {
	ListAvailablePeers(ctx context.Context) ([]domain.PeerRef, error)
}

// StaticRegistry is an in-memory registry seeded from configuration.
type StaticRegistry struct {
	mu    sync.RWMutex
	peers map[string]domain.PeerRef
}

// NewStaticRegistry creates a registry holding the given peers.
// Later entries replace earlier ones with the same identity.
func NewStaticRegistry(peers ...domain.PeerRef) *StaticRegistry {
	r := &StaticRegistry{peers: make(map[string]domain.PeerRef, len(peers))}
	for _, p := range peers {
		r.peers[p.ID] = p
	}
	return r
}

// Upsert adds or replaces a peer.
func (r *StaticRegistry) Upsert(p domain.PeerRef) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.peers[p.ID] = p
	r.mu.Unlock()
	return nil
}

// Remove drops a peer; unknown identities are ignored.
func (r *StaticRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.peers, id)
	r.mu.Unlock()
}

// ListAvailablePeers returns a snapshot ordered by ID.
func (r *StaticRegistry) ListAvailablePeers(ctx context.Context) ([]domain.PeerRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]domain.PeerRef, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
