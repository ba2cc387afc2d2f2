package domain

// RewardRecord is the score a peer earned in one round.
// Score is always finite and within [0, 1] once it leaves the reward engine.
// Valid is false when the engine had to sanitize a corrupted value.
type RewardRecord struct {
	PeerID string  `json:"peer_id"`
	Score  float64 `json:"score"`
	Valid  bool    `json:"valid"`
}

// CountInvalid returns how many records were sanitized.
func CountInvalid(records []RewardRecord) int {
	n := 0
	for _, r := range records {
		if !r.Valid {
			n++
		}
	}
	return n
}

// Scores extracts the score vector in order.
func Scores(records []RewardRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Score
	}
	return out
}
