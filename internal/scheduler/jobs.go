package scheduler

import (
	"context"

	"github.com/ndewijer/Finance-Insights/internal/service"
)

// SnapshotJobName is the name of the snapshot reconciliation job.
const SnapshotJobName = "analysis-snapshots"

// SnapshotJob stores fresh analysis snapshots for accounts whose saved
// statements are newer than their latest snapshot.
func SnapshotJob(analyses *service.AnalysisService) Job {
	return func(ctx context.Context) error {
		_, err := analyses.ReconcileSnapshots(ctx)
		return err
	}
}
