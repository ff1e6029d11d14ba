package notify

import (
	"context"
	"log/slog"
	"sync"
)

type Worker struct {
	ch     chan Notification
	sender Sender
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorker(sender Sender, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		ch:     make(chan Notification, bufferSize),
		sender: sender,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Go(func() {
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining notifications before shutdown", "remaining", len(w.ch))
				for len(w.ch) > 0 {
					w.deliver(context.Background(), <-w.ch)
				}
				return
			case n := <-w.ch:
				w.deliver(w.ctx, n)
			}
		}
	})
}

func (w *Worker) deliver(ctx context.Context, n Notification) {
	if err := w.sender.Send(ctx, n); err != nil {
		slog.Error("failed to send notification", "error", err, "recipient_id", n.RecipientID, "title", n.Title)
	}
}

// Notify enqueues n. A full buffer, or a worker already shut down, drops the
// notification with a warning.
func (w *Worker) Notify(ctx context.Context, n Notification) {
	if w.ctx.Err() != nil {
		slog.WarnContext(ctx, "notification worker stopped, dropping notification", "recipient_id", n.RecipientID, "title", n.Title)
		return
	}
	select {
	case w.ch <- n:
	default:
		slog.WarnContext(ctx, "notification channel full, dropping notification", "recipient_id", n.RecipientID, "title", n.Title)
	}
}

func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}
