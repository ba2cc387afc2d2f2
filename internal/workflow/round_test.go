package workflow

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-peerscore/internal/activity"
	"github.com/ahrav/go-peerscore/internal/dispatch"
	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/peers"
	"github.com/ahrav/go-peerscore/internal/reputation"
	"github.com/ahrav/go-peerscore/internal/reward"
	"github.com/ahrav/go-peerscore/internal/round"
	"github.com/ahrav/go-peerscore/internal/task"
	"github.com/ahrav/go-peerscore/internal/transport"
	pkgactivity "github.com/ahrav/go-peerscore/pkg/activity"
	"github.com/ahrav/go-peerscore/pkg/events"
)

// newEnv registers real round activities backed by in-memory components.
// Peer "slow" never answers; every other peer answers "ASTRONAUT".
func newEnv(t *testing.T, ps ...domain.PeerRef) (*testsuite.TestWorkflowEnvironment, *reputation.Store) {
	t.Helper()
	src, err := task.NewPoolSource(
		[]task.Sample{{Filename: "astronaut.jpg", ExpectedText: "ASTRONAUT"}},
		task.NewMemoryLoader(map[string][]byte{"astronaut.jpg": []byte("png")}),
	)
	require.NoError(t, err)

	tr := transport.Func(func(ctx context.Context, _ domain.Task, p domain.PeerRef) (string, error) {
		if p.ID == "slow" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ASTRONAUT", nil
	})
	store := reputation.NewStore()
	acts := activity.NewActivities(pkgactivity.NewBaseActivities(events.NewMemorySink(), "round-activities"), round.Deps{
		Source:     src,
		Registry:   peers.NewStaticRegistry(ps...),
		Selector:   peers.NewSelector("coordinator", rand.New(rand.NewPCG(1, 1))),
		Dispatcher: dispatch.New(tr, nil),
		Scorer:     reward.NewEngine(nil),
		Reputation: store,
	})

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(RoundWorkflow)
	env.RegisterActivity(acts.SampleTask)
	env.RegisterActivity(acts.SelectPeers)
	env.RegisterActivity(acts.DispatchTask)
	env.RegisterActivity(acts.ScoreResults)
	env.RegisterActivity(acts.ApplyRewards)
	return env, store
}

func refs(ids ...string) []domain.PeerRef {
	out := make([]domain.PeerRef, len(ids))
	for i, id := range ids {
		out[i] = domain.PeerRef{ID: id, Address: id + ":50051"}
	}
	return out
}

func input(k int, timeout time.Duration) domain.RoundWorkflowInput {
	return domain.RoundWorkflowInput{Round: domain.RoundConfig{SampleSize: k, Timeout: timeout, Alpha: 0.1}}
}

func TestRoundWorkflow(t *testing.T) {
	t.Run("completes with one timed out peer", func(t *testing.T) {
		env, store := newEnv(t, refs("a", "slow", "c")...)
		env.ExecuteWorkflow(RoundWorkflow, input(10, 100*time.Millisecond))

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var summary domain.RoundSummary
		require.NoError(t, env.GetWorkflowResult(&summary))
		assert.Equal(t, []string{"a", "c", "slow"}, summary.Peers)
		assert.Equal(t, []float64{1, 1, 0}, summary.Scores)
		assert.Equal(t, 1, summary.Failures)
		assert.Equal(t, 0, summary.Sanitized)
		assert.NotEmpty(t, summary.TaskID)

		slow, ok := store.Get("slow")
		require.True(t, ok)
		assert.Equal(t, 0.0, slow)
		a, _ := store.Get("a")
		assert.Equal(t, 1.0, a)
	})

	t.Run("invalid input fails validation", func(t *testing.T) {
		env, _ := newEnv(t, refs("a")...)
		env.ExecuteWorkflow(RoundWorkflow, input(0, time.Second))

		require.True(t, env.IsWorkflowCompleted())
		var appErr *temporal.ApplicationError
		require.ErrorAs(t, env.GetWorkflowError(), &appErr)
		assert.Equal(t, activity.ErrTypeInvalidArgument, appErr.Type())
		assert.True(t, appErr.NonRetryable())
	})

	t.Run("empty registry aborts the round", func(t *testing.T) {
		env, store := newEnv(t)
		env.ExecuteWorkflow(RoundWorkflow, input(3, time.Second))

		require.True(t, env.IsWorkflowCompleted())
		var appErr *temporal.ApplicationError
		require.ErrorAs(t, env.GetWorkflowError(), &appErr)
		assert.Equal(t, activity.ErrTypeDispatchAborted, appErr.Type())
		assert.Equal(t, 0, store.Len())
	})

	t.Run("dispatch is not retried", func(t *testing.T) {
		env, store := newEnv(t, refs("a")...)
		env.OnActivity("DispatchTask", mock.Anything, mock.Anything).
			Return(nil, errors.New("worker lost"))
		env.ExecuteWorkflow(RoundWorkflow, input(3, time.Second))

		require.True(t, env.IsWorkflowCompleted())
		require.Error(t, env.GetWorkflowError())
		env.AssertActivityNumberOfCalls(t, "DispatchTask", 1)
		assert.Equal(t, 0, store.Len())
	})
}

// TestRoundWorkflowDeterminism verifies repeated executions with the same
// peers produce the same peer order and scores.
func TestRoundWorkflowDeterminism(t *testing.T) {
	var first *domain.RoundSummary
	for i := 0; i < 3; i++ {
		env, _ := newEnv(t, refs("x", "y")...)
		env.ExecuteWorkflow(RoundWorkflow, input(5, time.Second))
		require.NoError(t, env.GetWorkflowError())

		var summary domain.RoundSummary
		require.NoError(t, env.GetWorkflowResult(&summary))
		if first == nil {
			first = &summary
			continue
		}
		assert.Equal(t, first.Peers, summary.Peers)
		assert.Equal(t, first.Scores, summary.Scores)
	}
}
