package vault

import "context"

// ReconcileJob periodically schedules a full export so the vault
// converges even after files are edited or removed out of band.
type ReconcileJob struct {
	pipeline *Pipeline
}

func NewReconcileJob(pipeline *Pipeline) *ReconcileJob {
	return &ReconcileJob{pipeline: pipeline}
}

func (j *ReconcileJob) Name() string { return "vault-reconcile" }

func (j *ReconcileJob) Run(ctx context.Context) error {
	j.pipeline.FullExport()
	return nil
}
