// Package worker assembles the round components from configuration and
// registers the round workflow and activities with a Temporal worker.
package worker

import (
	"github.com/ahrav/go-peerscore/internal/activity"
	"github.com/ahrav/go-peerscore/internal/workflow"
)

// Registrar is the registration surface shared by sdk workers and the
// Temporal test environment.
type Registrar interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

// RegisterAll registers the round workflow and every round activity.
// It must be called once during startup, before the worker starts.
func RegisterAll(r Registrar, acts *activity.Activities) {
	r.RegisterWorkflow(workflow.RoundWorkflow)

	r.RegisterActivity(acts.SampleTask)
	r.RegisterActivity(acts.SelectPeers)
	r.RegisterActivity(acts.DispatchTask)
	r.RegisterActivity(acts.ScoreResults)
	r.RegisterActivity(acts.ApplyRewards)
}
