package app

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"aisocials/internal/publisher"
	"aisocials/internal/scheduler"
	logx "aisocials/pkg/logx"
)

// Task names jobs may reference from config or the facade. Persisted job
// records store these names, so renaming one breaks restart recovery for
// existing jobs.
const (
	TaskGenerateContent = "content.generate"
	TaskPublishPending  = "post.publish"
	TaskCleanup         = "maintenance.cleanup"
)

const cleanupRetention = 7 * 24 * time.Hour

func (a *App) registerTasks(tasks *scheduler.TaskSet) {
	// Registration errors only occur on duplicate names, which would be a
	// programming error here.
	_ = tasks.Register(TaskGenerateContent, permanentOnAuthFailure(a.pipeline.Run))
	_ = tasks.Register(TaskPublishPending, permanentOnAuthFailure(a.pipeline.PublishPending))
	_ = tasks.Register(TaskCleanup, a.cleanupTask)
}

// permanentOnAuthFailure keeps the retry loop from hammering the platform
// with a revoked token; recovery needs a new credential, not time.
func permanentOnAuthFailure(run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := run(ctx)
		if errors.Is(err, publisher.ErrAuth) {
			return scheduler.NoRetry(err)
		}
		return err
	}
}

// cleanupTask prunes stale generated artifacts (temp images, spooled
// drafts) from the work directory tree.
func (a *App) cleanupTask(ctx context.Context) error {
	root := filepath.Join(os.TempDir(), "aisocials")
	cutoff := time.Now().Add(-cleanupRetention)
	removed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			a.log.Warn("cleanup remove failed", logx.String("file", path), logx.Err(err))
			return nil
		}
		removed++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if removed > 0 {
		a.log.Info("cleanup removed stale files", logx.Int("removed", removed), logx.String("dir", root))
	}
	return nil
}
