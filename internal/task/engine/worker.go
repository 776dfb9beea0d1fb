package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"octogrowl/internal/eventbus"
	logx "octogrowl/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue chan queuedTask) {
	for {
		// A closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.inFlight.Add(1)
			s.execOne(ctx, t)
			s.inFlight.Add(-1)
		}
	}
}

func (s *Service) execOne(ctx context.Context, qt queuedTask) {
	if qt.state != nil {
		defer qt.state.release()
	}
	start := time.Now()
	queueDelay := max(start.Sub(qt.enqueuedAt), 0)
	log := s.log.With(logx.String("task", qt.task.Name), logx.String("id", qt.task.ID))
	log.Debug("task started", logx.Duration("queue_delay", queueDelay))

	err := s.runOnce(ctx, qt, log)

	dur := time.Since(start)
	item := HistoryItem{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.failed.Add(1)
		log.Warn("task failed", logx.Err(err), logx.Duration("dur", dur))
		s.publish(eventbus.TypeTaskFailed, time.Now(), item)
	} else {
		s.done.Add(1)
		log.Debug("task completed", logx.Duration("dur", dur))
		s.publish(eventbus.TypeTaskFinished, time.Now(), item)
	}
	s.record(item)
}

// runOnce runs the task under its timeout, turning panics into errors so a
// bad task cannot kill a worker.
func (s *Service) runOnce(ctx context.Context, qt queuedTask, log logx.Logger) (err error) {
	if qt.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, qt.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Error("task panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	return qt.task.Run(ctx)
}
