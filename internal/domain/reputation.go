package domain

import "time"

// ReputationEntry is a peer's running exponentially weighted score.
type ReputationEntry struct {
	PeerID    string    `json:"peer_id"`
	EMAScore  float64   `json:"ema_score"`
	Updates   int       `json:"updates"`
	UpdatedAt time.Time `json:"updated_at"`
}
