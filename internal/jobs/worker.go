package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImageDeleter is the part of the image host the worker needs.
type ImageDeleter interface {
	Delete(ctx context.Context, publicID string) error
}

type Worker struct {
	ID       string
	Repo     *Repo
	DB       *gorm.DB
	Images   ImageDeleter
	Log      *zap.Logger
	Interval time.Duration
}

// tileRef reads the tiles table without importing the board package.
type tileRef struct {
	ID       string `gorm:"column:id"`
	PublicID string `gorm:"column:data_public_id"`
}

func (tileRef) TableName() string { return "tiles" }

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce claims and handles at most one due job. It reports whether a job
// was handled.
func (w *Worker) RunOnce(ctx context.Context) bool {
	job, err := w.Repo.Claim(w.ID)
	if err != nil {
		w.log().Error("worker claim error", zap.Error(err))
		return false
	}
	if job == nil {
		return false
	}
	w.handle(ctx, job)
	return true
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeImageDelete:
		w.handleImageDelete(ctx, job)
	default:
		_ = w.Repo.MarkFailed(job.ID, "unknown job type")
	}
}

func (w *Worker) handleImageDelete(ctx context.Context, job *Job) {
	var p imageDeletePayload
	if err := json.Unmarshal([]byte(job.Payload), &p); err != nil || p.PublicID == "" {
		_ = w.Repo.MarkFailed(job.ID, "bad payload")
		return
	}

	// A tile restored by undo may point at the image again.
	var refs int64
	if err := w.DB.WithContext(ctx).Model(&tileRef{}).
		Where("data_public_id = ?", p.PublicID).
		Count(&refs).Error; err != nil {
		w.retry(job, "db read error")
		return
	}
	if refs > 0 {
		w.log().Info("image still referenced, keeping", zap.String("public_id", p.PublicID), zap.Int64("refs", refs))
		_ = w.Repo.MarkDone(job.ID)
		return
	}

	if err := w.Images.Delete(ctx, p.PublicID); err != nil {
		w.retry(job, fmt.Sprintf("delete image: %v", err))
		return
	}
	w.log().Info("image deleted", zap.String("public_id", p.PublicID), zap.String("user_id", job.UserID))
	_ = w.Repo.MarkDone(job.ID)
}

func (w *Worker) retry(job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.log().Warn("job failed", zap.Uint64("job_id", job.ID), zap.String("error", errMsg))
		_ = w.Repo.MarkFailed(job.ID, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := w.Repo.now().Add(time.Duration(sec) * time.Second)

	_ = w.Repo.RetryLater(job.ID, attempts, next, errMsg)
}

func (w *Worker) log() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}
