// Package store archives the results of an analysis run. Export is
// write-only and optional: nothing in the engine reads state back between
// runs.
package store

import (
	"context"

	"deforest/src/contracts"
)

// Store persists one run's correlated output.
type Store interface {
	// SaveRun records the run summary. Must be called before the per-item
	// saves referencing its ID.
	SaveRun(ctx context.Context, run *contracts.RunRecord) error

	// SaveIdentity records one source's resolved identity.
	SaveIdentity(ctx context.Context, runID string, id *contracts.NodeIdentity) error

	// SaveWorkflow records one state-transfer workflow.
	SaveWorkflow(ctx context.Context, runID string, wf *contracts.StateTransferWorkflow) error

	// SaveFinding records one divergence finding.
	SaveFinding(ctx context.Context, runID string, f *contracts.SplitBrainFinding) error

	// Close releases the underlying connection.
	Close() error
}
