package domain

import (
	"errors"
	"math"
	"testing"
	"testing/quick"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task, err := NewTask([]byte("img"), "ASTRONAUT", "astronaut.jpg")
	require.NoError(t, err)
	_, err = uuid.Parse(task.ID)
	assert.NoError(t, err)
	assert.Equal(t, "ASTRONAUT", task.ExpectedAnswer)

	other, err := NewTask([]byte("img"), "ASTRONAUT", "astronaut.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, task.ID, other.ID)
}

func TestTask_Validate(t *testing.T) {
	valid := Task{ID: uuid.NewString(), ExpectedAnswer: "MEMORY"}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{"valid", func(*Task) {}, false},
		{"nil payload allowed", func(t *Task) { t.Payload = nil }, false},
		{"missing id", func(t *Task) { t.ID = "" }, true},
		{"non-uuid id", func(t *Task) { t.ID = "task-1" }, true},
		{"empty expected", func(t *Task) { t.ExpectedAnswer = "" }, true},
		{"blank expected", func(t *Task) { t.ExpectedAnswer = " \t\n" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			tt.mutate(&task)
			err := task.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTask)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPeerRef(t *testing.T) {
	assert.NoError(t, PeerRef{ID: "p1", Address: "10.0.0.1:50051"}.Validate())
	assert.ErrorIs(t, PeerRef{Address: "x:1"}.Validate(), ErrInvalidArgument)
	assert.ErrorIs(t, PeerRef{ID: "p1"}.Validate(), ErrInvalidArgument)

	assert.Equal(t, "p1@x:1", PeerRef{ID: "p1", Address: "x:1"}.String())
	assert.Equal(t, []string{"a", "b"}, PeerIDs([]PeerRef{{ID: "a"}, {ID: "b"}}))
}

func TestDispatchResult(t *testing.T) {
	ok := Succeeded("p1", "", 5*time.Millisecond)
	answer, has := ok.Answer()
	assert.True(t, has, "an empty answer is still an answer")
	assert.Empty(t, answer)
	assert.False(t, ok.Failed())
	assert.NoError(t, ok.Validate())

	to := TimedOut("p2", time.Second)
	_, has = to.Answer()
	assert.False(t, has)
	assert.True(t, to.Failed())
	assert.Equal(t, ErrorKindTimeout, to.ErrorKind)

	unknown := TransportFailed("p3", ErrorKindNone, 0)
	assert.Equal(t, ErrorKindUnknown, unknown.ErrorKind)

	assert.Equal(t, 2, CountFailures([]DispatchResult{ok, to, unknown}))
}

func TestDispatchResult_Validate(t *testing.T) {
	tests := []struct {
		name string
		r    DispatchResult
	}{
		{"missing peer", DispatchResult{Outcome: OutcomeTimeout, ErrorKind: ErrorKindTimeout}},
		{"success without answer", DispatchResult{PeerID: "p", Outcome: OutcomeSuccess}},
		{"timeout without kind", DispatchResult{PeerID: "p", Outcome: OutcomeTimeout}},
		{"unknown outcome", DispatchResult{PeerID: "p", Outcome: "lost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.r.Validate(), ErrInvalidArgument)
		})
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(NewTransportError(ErrorKindConnectionRefused, cause))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection_refused")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrorKindConnectionRefused, te.Kind)

	assert.Equal(t, "transport error (unavailable)", NewTransportError(ErrorKindUnavailable, nil).Error())
}

func TestRoundConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultRoundConfig().Validate())

	tests := []struct {
		name string
		cfg  RoundConfig
	}{
		{"zero sample size", RoundConfig{SampleSize: 0, Timeout: time.Second, Alpha: 0.1}},
		{"negative timeout", RoundConfig{SampleSize: 1, Timeout: -time.Second, Alpha: 0.1}},
		{"zero alpha", RoundConfig{SampleSize: 1, Timeout: time.Second, Alpha: 0}},
		{"alpha above one", RoundConfig{SampleSize: 1, Timeout: time.Second, Alpha: 1.01}},
		{"nan alpha", RoundConfig{SampleSize: 1, Timeout: time.Second, Alpha: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrInvalidArgument)
		})
	}
	assert.NoError(t, ValidateAlpha(1))
}

func TestCheckAlignment(t *testing.T) {
	peers := []PeerRef{{ID: "a"}, {ID: "b"}}
	results := []DispatchResult{Succeeded("a", "x", 0), TimedOut("b", 0)}
	rewards := []RewardRecord{{PeerID: "a", Score: 1, Valid: true}, {PeerID: "b", Valid: true}}

	assert.NoError(t, CheckAlignment(peers, results, nil))
	assert.NoError(t, CheckAlignment(peers, results, rewards))

	assert.ErrorIs(t, CheckAlignment(peers, results[:1], nil), ErrInvalidArgument)
	assert.ErrorIs(t, CheckAlignment(peers, results, rewards[:1]), ErrInvalidArgument)

	swapped := []DispatchResult{results[1], results[0]}
	assert.ErrorIs(t, CheckAlignment(peers, swapped, nil), ErrInvalidArgument)

	misattributed := []RewardRecord{rewards[1], rewards[0]}
	assert.ErrorIs(t, CheckAlignment(peers, results, misattributed), ErrInvalidArgument)
}

func TestRewardHelpers(t *testing.T) {
	records := []RewardRecord{
		{PeerID: "a", Score: 1, Valid: true},
		{PeerID: "b", Score: 0, Valid: false},
		{PeerID: "c", Score: 0.5, Valid: true},
	}
	assert.Equal(t, 1, CountInvalid(records))
	assert.Equal(t, []float64{1, 0, 0.5}, Scores(records))
}

func TestActivityInputs_Validate(t *testing.T) {
	task, err := NewTask(nil, "X", "")
	require.NoError(t, err)
	peers := []PeerRef{{ID: "a", Address: "a:1"}}

	assert.ErrorIs(t, SelectPeersInput{}.Validate(), ErrInvalidArgument)
	assert.NoError(t, SelectPeersInput{SampleSize: 3}.Validate())

	assert.NoError(t, DispatchInput{Task: task, Peers: peers, Timeout: time.Second}.Validate())
	assert.ErrorIs(t, DispatchInput{Task: Task{}, Peers: peers, Timeout: time.Second}.Validate(), ErrInvalidTask)
	assert.ErrorIs(t, DispatchInput{Task: task, Peers: peers}.Validate(), ErrInvalidArgument)
	assert.ErrorIs(t, DispatchInput{Task: task, Timeout: time.Second}.Validate(), ErrDispatchAborted)

	assert.NoError(t, ScoreInput{Task: task, Results: []DispatchResult{TimedOut("a", 0)}}.Validate())
	assert.ErrorIs(t, ScoreInput{Task: task, Results: []DispatchResult{{PeerID: "a"}}}.Validate(), ErrInvalidArgument)

	assert.NoError(t, ApplyRewardsInput{Alpha: 0.1, Rewards: []RewardRecord{{PeerID: "a"}}}.Validate())
	assert.ErrorIs(t, ApplyRewardsInput{Alpha: 0.1, Rewards: []RewardRecord{{}}}.Validate(), ErrInvalidArgument)
	assert.ErrorIs(t, ApplyRewardsInput{Alpha: 2}.Validate(), ErrInvalidArgument)

	assert.NoError(t, RoundWorkflowInput{Round: DefaultRoundConfig()}.Validate())
	assert.ErrorIs(t, RoundWorkflowInput{}.Validate(), ErrInvalidArgument)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 0.0, Clamp01(math.Inf(-1)))
	assert.Equal(t, 1.0, Clamp01(math.Inf(1)))
	assert.Equal(t, 0.25, Clamp01(0.25))

	assert.False(t, IsUnitInterval(math.NaN()))
	assert.False(t, IsUnitInterval(math.Inf(1)))
	assert.False(t, IsUnitInterval(-0.1))
	assert.True(t, IsUnitInterval(0))
	assert.True(t, IsUnitInterval(1))

	property := func(x float64) bool { return IsUnitInterval(Clamp01(x)) }
	require.NoError(t, quick.Check(property, nil))
}
