package monitor

import (
	"context"
	"log"
	"sync"
)

// Dispatcher is the single background consumer spec §4.D describes: it reads
// one feed id at a time off the SubmissionQueue and spawns an independently
// scheduled MonitorWorker for it, never waiting on that worker before moving
// on to the next item. Submission throughput is therefore independent of how
// long any individual feed check takes.
type Dispatcher struct {
	queue  *SubmissionQueue
	worker *MonitorWorker
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewDispatcher builds a Dispatcher over queue, spawning worker.Run for each
// item consumed.
func NewDispatcher(queue *SubmissionQueue, worker *MonitorWorker, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{queue: queue, worker: worker, logger: logger}
}

// Start launches the consumer loop in the background. Calling Start twice is
// a programming error; callers own their own lifecycle discipline.
func (d *Dispatcher) Start() {
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.done = make(chan struct{})
	go d.loop()
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		feedID, ok := d.queue.Get()
		if !ok {
			return
		}
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.worker.Run(d.ctx, id)
		}(feedID)
	}
}

// Stop cancels the dispatcher's own loop and closes the queue; outstanding
// workers see their context cancelled and are given a chance to unwind
// before Stop returns.
//
// The loop must observe its own exit (<-d.done) before Stop calls wg.Wait:
// every wg.Add happens inside loop, strictly before it returns and closes
// done, so waiting on done first rules out the Add-after-Wait race that a
// bare wg.Wait here would otherwise risk against an in-flight Get/Add pair.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.queue.Close()
	<-d.done
	d.wg.Wait()
}
