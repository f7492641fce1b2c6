package feed

import (
	"context"
	"log/slog"
	"sync"

	sn_metrics "socialfeed/pkg/metrics"
	"socialfeed/pkg/model"
)

// Dispatcher hands a verified post over to fan-out without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, reqID int64, post model.Post) error
}

// Accept verifies that the post exists and dispatches its fan-out. A missing
// post is reported as NotFound and nothing is dispatched.
func Accept(ctx context.Context, w *Writer, d Dispatcher, reqID int64, postID int64) error {
	post, err := w.Lookup(ctx, postID)
	if err != nil {
		return err
	}
	sn_metrics.PostsProcessed.Inc()
	return d.Dispatch(ctx, reqID, post)
}

// InlineDispatcher runs fan-out on a goroutine of the current process. The
// goroutine outlives the caller's context.
type InlineDispatcher struct {
	writer *Writer
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewInlineDispatcher(writer *Writer, logger *slog.Logger) *InlineDispatcher {
	return &InlineDispatcher{writer: writer, logger: logger}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, reqID int64, post model.Post) error {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logger.Debug("fanning out post inline", "req_id", reqID, "post_id", post.PostID)
		d.writer.FanOut(ctx, post)
	}()
	return nil
}

// Wait blocks until every dispatched fan-out has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
