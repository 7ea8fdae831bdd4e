package stage

import (
	"context"

	"vigil/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Prepare validates inputs and sets initial progress; Execute does the work
// and writes stage artifacts onto the run. Both receive the run by pointer
// and the manager persists it after each call.
type Handler interface {
	Prepare(context.Context, *queue.Run) error
	Execute(context.Context, *queue.Run) error
	HealthCheck(context.Context) Health
}
