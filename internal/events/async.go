package events

import (
	"context"
	"log"
	"sync"
	"time"

	"alcyxob/video-catalog/internal/leaderboard"
)

const (
	defaultBuffer  = 1024
	defaultWorkers = 2
	maxBatch       = 128
	recordTimeout  = 5 * time.Second
)

// AsyncSink queues notifications in memory and hands them to a Recorder from
// a fixed pool of workers. When the queue is full the notification is
// dropped and logged; the caller never waits.
type AsyncSink struct {
	recorder Recorder
	queue    chan string
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink starts workers goroutines draining into recorder.
func NewAsyncSink(recorder Recorder, buffer, workers int) *AsyncSink {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	s := &AsyncSink{recorder: recorder, queue: make(chan string, buffer)}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.work()
	}
	return s
}

// NotifyViewed enqueues one view. The context is not retained: delivery
// outlives the request that triggered it.
func (s *AsyncSink) NotifyViewed(_ context.Context, videoID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		log.Printf("WARN: View event for video %s dropped: sink closed", videoID)
		return
	}
	select {
	case s.queue <- videoID:
	default:
		log.Printf("WARN: View event for video %s dropped: queue full", videoID)
	}
}

// Close stops accepting events, drains what is queued and waits for the workers.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *AsyncSink) work() {
	defer s.wg.Done()
	for id := range s.queue {
		batch := []leaderboard.Increment{{VideoID: id, By: 1}}
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-s.queue:
				if !ok {
					break drain
				}
				batch = append(batch, leaderboard.Increment{VideoID: next, By: 1})
			default:
				break drain
			}
		}
		s.flush(Coalesce(batch))
	}
}

func (s *AsyncSink) flush(batch []leaderboard.Increment) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.recorder.Record(ctx, batch); err != nil {
		log.Printf("ERROR: Failed to deliver %d view event(s): %v", len(batch), err)
	}
}
