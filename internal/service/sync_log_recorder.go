package service

import (
	"bizops_backend/internal/model"
	"bizops_backend/internal/repository"
	"bizops_backend/pkg/logger"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SyncLogRecorder opens a sync log before a run touches the provider and
// closes it exactly once when the run ends.
type SyncLogRecorder struct {
	Logs *repository.SyncLogRepository

	now func() time.Time
}

func NewSyncLogRecorder(logs *repository.SyncLogRepository) *SyncLogRecorder {
	return &SyncLogRecorder{Logs: logs, now: time.Now}
}

// SyncRun is an open sync log. Only the first Close is written.
type SyncRun struct {
	Log *model.SyncLog

	recorder *SyncLogRecorder
	once     sync.Once
	err      error
}

func (r *SyncLogRecorder) Open(ctx context.Context, questionnaireID, triggeredBy uint, runType model.SyncRunType) (*SyncRun, error) {
	l := &model.SyncLog{
		QuestionnaireID: questionnaireID,
		TriggeredBy:     triggeredBy,
		RunType:         runType,
		Status:          model.SyncInProgress,
		StartedAt:       r.now(),
	}
	if err := r.Logs.Create(ctx, l); err != nil {
		return nil, err
	}
	return &SyncRun{Log: l, recorder: r}, nil
}

// Close writes the terminal state. The write is detached from ctx so a
// cancelled request still closes its log.
func (run *SyncRun) Close(ctx context.Context, out repository.SyncLogOutcome) error {
	run.once.Do(func() {
		out.CompletedAt = run.recorder.now()
		run.err = run.recorder.Logs.Close(context.WithoutCancel(ctx), run.Log.ID, out)
		if run.err != nil {
			logger.Log.Error("Failed to close sync log", zap.Uint("syncLogID", run.Log.ID), zap.Error(run.err))
			return
		}
		run.Log.Status = out.Status
		run.Log.FetchedCount = out.Fetched
		run.Log.NewCount = out.New
		run.Log.UpdatedCount = out.Updated
		run.Log.FailedCount = out.Failed
		run.Log.ErrorMessage = out.ErrorMessage
		run.Log.CompletedAt = &out.CompletedAt
	})
	return run.err
}
