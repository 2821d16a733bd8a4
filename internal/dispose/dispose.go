// Package dispose removes harvested messages: one bulk delete per chunk,
// falling back to trashing each message of a failed chunk individually.
package dispose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joshsymonds/labelcast/internal/gmail"
	"github.com/joshsymonds/labelcast/internal/rate"
)

// MaxBatch is the largest id list Gmail accepts in one batchDelete call.
const MaxBatch = 1000

const progressEvery = 5

// Failure records one message the fallback could not trash.
type Failure struct {
	ID  gmail.MessageID
	Err error
}

// Report summarizes a disposal.
type Report struct {
	Requested int
	Succeeded int
	Failures  []Failure
	// BulkErrors holds the error of every bulk call that fell back.
	BulkErrors []error
}

// UsedFallback reports whether any chunk went through per-message trash.
func (r Report) UsedFallback() bool { return len(r.BulkErrors) > 0 }

// Service deletes messages through a gmail.Client.
type Service struct {
	Client  gmail.Client
	Limiter rate.Limiter
	Logger  *slog.Logger
	// Progress receives operator-facing fallback progress lines.
	Progress io.Writer
	// ChunkSize caps ids per bulk call; <=0 or >MaxBatch means MaxBatch.
	ChunkSize int
}

// NewService constructs a Service with sane defaults.
func NewService(client gmail.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	return &Service{Client: client, Limiter: limiter, Logger: logger, Progress: io.Discard, ChunkSize: MaxBatch}
}

// Dispose removes ids. Lists up to ChunkSize ids take exactly one bulk call.
// When a bulk call fails, every id of that chunk is trashed once, in order,
// and failures are collected rather than stopping the loop. The only error
// returned is a canceled context.
func (s *Service) Dispose(ctx context.Context, ids []gmail.MessageID) (Report, error) {
	rep := Report{Requested: len(ids)}
	if len(ids) == 0 {
		return rep, nil
	}
	chunk := s.ChunkSize
	if chunk <= 0 || chunk > MaxBatch {
		chunk = MaxBatch
	}

	for i := 0; i < len(ids); i += chunk {
		j := min(i+chunk, len(ids))
		batch := ids[i:j]
		if err := s.Limiter.Wait(ctx); err != nil {
			return rep, err
		}
		err := s.Client.BatchDelete(ctx, batch)
		if err == nil {
			rep.Succeeded += len(batch)
			s.Logger.InfoContext(ctx, "bulk deleted", "count", len(batch))
			continue
		}
		s.Logger.WarnContext(ctx, "bulk delete failed; trashing individually", "count", len(batch), "error", err)
		rep.BulkErrors = append(rep.BulkErrors, err)
		if err := s.trashEach(ctx, batch, &rep); err != nil {
			return rep, err
		}
	}
	s.Logger.InfoContext(ctx, "disposal complete",
		"requested", rep.Requested, "succeeded", rep.Succeeded, "failed", len(rep.Failures))
	return rep, nil
}

func (s *Service) trashEach(ctx context.Context, batch []gmail.MessageID, rep *Report) error {
	for _, id := range batch {
		if err := s.Limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.Client.Trash(ctx, id); err != nil {
			s.Logger.WarnContext(ctx, "trash failed", "message_id", id, "error", err)
			rep.Failures = append(rep.Failures, Failure{ID: id, Err: err})
			continue
		}
		rep.Succeeded++
		if rep.Succeeded%progressEvery == 0 {
			fmt.Fprintf(s.progress(), "Deleted %d/%d messages...\n", rep.Succeeded, rep.Requested)
		}
	}
	return nil
}

func (s *Service) progress() io.Writer {
	if s.Progress == nil {
		return io.Discard
	}
	return s.Progress
}
