package dashboard

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/metrics"
	"github.com/zulandar/testyard/internal/notify"
	"github.com/zulandar/testyard/internal/worker"
)

// statusKeyHeader carries the status board key of an accepted import.
const statusKeyHeader = "X-Status-Key"

// importJob is a background import published on the status board.
type importJob struct {
	kind    string
	project string
	version string
	key     string
	run     func(ctx context.Context) (fmt.Stringer, error)
}

// dispatch hands job to the worker pool. When the pool refuses it the
// board entry is failed and the error returned.
func (s *Server) dispatch(ctx context.Context, job importJob) error {
	err := s.Pool.Submit(worker.Task{
		Name: job.kind + ":" + job.key,
		Run:  func(ctx context.Context) error { return s.runImport(ctx, job) },
	})
	if err != nil {
		if ferr := s.Board.Fail(ctx, job.key, err); ferr != nil {
			s.Logger.Warn("fail status entry", "status_key", job.key, "error", ferr)
		}
		return err
	}
	return nil
}

func (s *Server) runImport(ctx context.Context, job importJob) error {
	log := s.Logger.With("task", job.kind, "project", job.project, "status_key", job.key)
	done := metrics.ImportStarted(job.kind)

	summary, err := job.run(ctx)
	done(err)

	imp := notify.Import{Kind: job.kind, Project: job.project, Version: job.version, StatusKey: job.key, Err: err}
	if err != nil {
		log.Error("import failed", "error", err)
		if ferr := s.Board.Fail(ctx, job.key, err); ferr != nil {
			log.Warn("fail status entry", "error", ferr)
		}
	} else {
		imp.Summary = summary.String()
		log.Info("import done", "summary", imp.Summary)
		if ferr := s.Board.Finish(ctx, job.key, imp.Summary); ferr != nil {
			log.Warn("finish status entry", "error", ferr)
		}
	}
	s.Notifier.ImportFinished(ctx, imp)
	return err
}

// openUpload opens the multipart "file" field.
func openUpload(c *gin.Context) (multipart.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("dashboard: file is required: %w", apperr.ErrMissingField)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("dashboard: open upload: %w", err)
	}
	return f, nil
}
