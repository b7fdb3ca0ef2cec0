// Package worker runs the background egress reconciler: webhooks are
// at-least-once, so a lost delivery can strand a recording in active or
// processing. The reconciler re-queries the egress API for those and pushes
// the answer through the same reconciliation path the webhooks use.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/echo-sphere/backend/internal/egress"
	"github.com/echo-sphere/backend/internal/models"
	"github.com/echo-sphere/backend/internal/recordings"
)

const (
	defaultInterval = time.Minute
	// gracePeriod keeps the reconciler away from recordings young enough for
	// the webhook to still be in flight.
	gracePeriod = 2 * time.Minute
	sweepLimit  = 100
)

// Reconciler sweeps non-terminal recordings against the egress API.
type Reconciler struct {
	repo     *recordings.Repository
	service  *recordings.Service
	egress   egress.Client
	interval time.Duration
	logger   *zap.Logger
}

// NewReconciler creates a reconciler. interval <= 0 selects the default.
func NewReconciler(repo *recordings.Repository, service *recordings.Service, egressClient egress.Client, interval time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Reconciler{repo: repo, service: service, egress: egressClient, interval: interval, logger: logger}
}

// Run sweeps until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	for _, status := range []models.RecordingStatus{models.RecordingStatusActive, models.RecordingStatusProcessing} {
		list, err := r.repo.ListByStatus(ctx, status, sweepLimit, 0)
		if err != nil {
			r.logger.Warn("reconciler list failed", zap.Error(err), zap.String("status", string(status)))
			continue
		}
		for i := range list {
			rec := &list[i]
			if time.Since(rec.UpdatedAt) < gracePeriod {
				continue
			}
			r.reconcile(ctx, rec)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, rec *models.Recording) {
	info, err := r.egress.GetEgressInfo(ctx, rec.EgressID)
	if err != nil {
		r.logger.Warn("egress query failed",
			zap.Error(err),
			zap.String("recording_id", rec.ID.String()),
			zap.String("egress_id", rec.EgressID),
		)
		return
	}
	if info == nil {
		// The egress server no longer knows the job; its output will never
		// arrive.
		info = &egress.Info{
			EgressID: rec.EgressID,
			Status:   egress.StatusFailed,
			Error:    "egress no longer exists",
		}
	}

	r.logger.Info("reconciling recording",
		zap.String("recording_id", rec.ID.String()),
		zap.String("egress_status", string(info.Status)),
	)
	if _, err := r.service.HandleEgressEvent(ctx, info); err != nil {
		r.logger.Error("reconcile failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
	}
}
