package domain

import "fmt"

// PeerRef identifies a worker reachable over the network.
// Supplied by the registry collaborator and read-only to the round pipeline.
type PeerRef struct {
	ID      string `json:"id"      validate:"required"`
	Address string `json:"address" validate:"required"`
}

// Validate checks that both identity and address are present.
func (p PeerRef) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: peer %q: %w", ErrInvalidArgument, p.ID, err)
	}
	return nil
}

func (p PeerRef) String() string { return p.ID + "@" + p.Address }

// PeerIDs extracts the identities of peers in order.
func PeerIDs(peers []PeerRef) []string {
	ids := make([]string, len(peers))
	for i, p := range peers {
		ids[i] = p.ID
	}
	return ids
}
