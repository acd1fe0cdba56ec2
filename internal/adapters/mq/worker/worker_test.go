package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/kpisync/internal/adapters/mq/queue"
	"github.com/okian/kpisync/internal/adapters/mq/worker"
	"github.com/okian/kpisync/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeRunner records requests and tracks overlapping runs.
type fakeRunner struct {
	mu       sync.Mutex
	requests []model.RunRequest
	active   int
	overlap  bool
	delay    time.Duration
	err      error
	panicMsg string
}

func (f *fakeRunner) Run(ctx context.Context, req model.RunRequest) (model.Result, error) {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return model.Result{Status: model.StatusError}, ctx.Err()
	}
	if f.err != nil {
		return model.Result{Status: model.StatusError, Error: f.err.Error()}, f.err
	}
	return model.Result{Status: model.StatusSuccess, Individual: model.Tally{Success: 1}}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func start(q *queue.InMemoryQueue, r worker.Runner, opts ...worker.Option) (*worker.InMemoryWorker, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	w := worker.NewInMemoryWorker(q, r, opts...)
	go w.Run(ctx)
	return w, cancel
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker over a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))

		Convey("A waiting job receives its result", func() {
			r := &fakeRunner{}
			w, cancel := start(q, r, worker.WithName("sync"))
			defer cancel()

			job := queue.NewJob(model.RunRequest{ProcessIndividual: true, Therapist: "chris", Trigger: model.TriggerHTTP}, true)
			So(q.Enqueue(ctx, job), ShouldBeNil)

			select {
			case out := <-job.Reply:
				So(out.Err, ShouldBeNil)
				So(out.Result.Status, ShouldEqual, model.StatusSuccess)
			case <-time.After(2 * time.Second):
				So("timed out", ShouldBeEmpty)
			}
			So(r.count(), ShouldEqual, 1)
			So(r.requests[0].Therapist, ShouldEqual, "chris")
			So(w.Processed(), ShouldEqual, 1)
		})

		Convey("Runs never overlap", func() {
			r := &fakeRunner{delay: 20 * time.Millisecond}
			_, cancel := start(q, r)
			defer cancel()

			var replies []chan queue.Outcome
			for i := 0; i < 3; i++ {
				job := queue.NewJob(model.DefaultRunRequest(model.TriggerTimer), true)
				So(q.Enqueue(ctx, job), ShouldBeNil)
				replies = append(replies, job.Reply)
			}
			for _, reply := range replies {
				<-reply
			}
			So(r.count(), ShouldEqual, 3)
			So(r.overlap, ShouldBeFalse)
		})

		Convey("Run errors are reported to the caller", func() {
			r := &fakeRunner{err: errors.New("config workbook unavailable")}
			_, cancel := start(q, r)
			defer cancel()

			job := queue.NewJob(model.DefaultRunRequest(model.TriggerHTTP), true)
			So(q.Enqueue(ctx, job), ShouldBeNil)
			out := <-job.Reply
			So(out.Err, ShouldNotBeNil)
			So(out.Result.Status, ShouldEqual, model.StatusError)
		})

		Convey("A panicking run becomes an error", func() {
			r := &fakeRunner{panicMsg: "bad sheet"}
			_, cancel := start(q, r)
			defer cancel()

			job := queue.NewJob(model.DefaultRunRequest(model.TriggerHTTP), true)
			So(q.Enqueue(ctx, job), ShouldBeNil)
			out := <-job.Reply
			So(out.Err.Error(), ShouldContainSubstring, "bad sheet")
			So(out.Result.Error, ShouldContainSubstring, "bad sheet")
		})

		Convey("The run timeout cancels a slow run", func() {
			r := &fakeRunner{delay: time.Minute}
			_, cancel := start(q, r, worker.WithRunTimeout(20*time.Millisecond))
			defer cancel()

			job := queue.NewJob(model.DefaultRunRequest(model.TriggerHTTP), true)
			So(q.Enqueue(ctx, job), ShouldBeNil)
			out := <-job.Reply
			So(errors.Is(out.Err, context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("Shutdown stops the worker", func() {
			w, cancel := start(q, &fakeRunner{})
			defer cancel()

			sctx, done := context.WithTimeout(ctx, time.Second)
			defer done()
			So(w.Shutdown(sctx), ShouldBeNil)
			So(w.Busy(), ShouldBeFalse)
		})

		Convey("Closing the queue ends Run", func() {
			w := worker.NewInMemoryWorker(q, &fakeRunner{})
			finished := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(finished)
			}()
			So(q.Close(), ShouldBeNil)
			select {
			case <-finished:
			case <-time.After(time.Second):
				So("worker still running", ShouldBeEmpty)
			}
		})
	})
}
