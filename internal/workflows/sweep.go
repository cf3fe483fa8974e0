// Package workflows holds the Temporal workflows run by the janitor.
package workflows

import (
	"sort"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

// OrphanSweepWorkflowName is the registered workflow type name.
const OrphanSweepWorkflowName = "OrphanSweepWorkflow"

// DefaultMinAge protects uploads whose bench record is still being written.
const DefaultMinAge = 24 * time.Hour

// removeBatchSize matches the S3 multi-object delete limit.
const removeBatchSize = 1000

// SweepInput is the input for the orphan photo sweep.
type SweepInput struct {
	Prefix string
	MinAge time.Duration
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Scanned    int
	Referenced int
	Removed    int
}

// OrphanSweepWorkflow removes bucket objects that no bench references and
// that are older than MinAge. Such objects are left behind when a bench
// write fails after its photos were uploaded, or when cleanup after a
// delete did not go through.
func OrphanSweepWorkflow(ctx workflow.Context, input SweepInput) (SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	if input.MinAge <= 0 {
		input.MinAge = DefaultMinAge
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	cutoff := workflow.Now(ctx).Add(-input.MinAge)
	logger.Info("Starting orphan photo sweep", "prefix", input.Prefix, "cutoff", cutoff)

	// Referenced keys first: an object uploaded after this snapshot is
	// younger than the cutoff and therefore skipped.
	var referenced []string
	if err := workflow.ExecuteActivity(ctx, "ReferencedPhotoKeys").Get(ctx, &referenced); err != nil {
		return SweepResult{}, err
	}

	var stored []domain.StoredObject
	if err := workflow.ExecuteActivity(ctx, "ListStoredPhotos", input.Prefix).Get(ctx, &stored); err != nil {
		return SweepResult{}, err
	}

	orphans := findOrphans(stored, referenced, cutoff)
	result := SweepResult{Scanned: len(stored), Referenced: len(referenced)}

	for start := 0; start < len(orphans); start += removeBatchSize {
		end := min(start+removeBatchSize, len(orphans))
		var removed int
		if err := workflow.ExecuteActivity(ctx, "RemovePhotos", orphans[start:end]).Get(ctx, &removed); err != nil {
			logger.Warn("orphan removal batch failed", "error", err, "batch_start", start)
			return result, err
		}
		result.Removed += removed
	}

	logger.Info("Orphan photo sweep finished", "scanned", result.Scanned, "removed", result.Removed)
	return result, nil
}

// findOrphans returns, sorted, the keys of stored objects that are not
// referenced and were last modified before cutoff.
func findOrphans(stored []domain.StoredObject, referenced []string, cutoff time.Time) []string {
	refs := make(map[string]struct{}, len(referenced))
	for _, k := range referenced {
		refs[k] = struct{}{}
	}

	var orphans []string
	for _, obj := range stored {
		if _, ok := refs[obj.Key]; ok {
			continue
		}
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		orphans = append(orphans, obj.Key)
	}
	sort.Strings(orphans)
	return orphans
}
