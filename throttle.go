package wpca

import (
	"sync"
	"sync/atomic"
)

// throttle bounds the number of concurrently running window jobs and
// remembers the first error any of them reports.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	sem       chan bool
	err       atomic.Value
	setupOnce sync.Once
	errorOnce sync.Once
}

// Go runs f on a new goroutine, blocking first if Max jobs are already
// in flight.
func (t *throttle) Go(f func() error) {
	t.setupOnce.Do(func() { t.sem = make(chan bool, t.Max) })
	t.wg.Add(1)
	t.sem <- true
	go func() {
		defer func() {
			<-t.sem
			t.wg.Done()
		}()
		t.Report(f())
	}()
}

func (t *throttle) Report(err error) {
	if err != nil {
		t.errorOnce.Do(func() { t.err.Store(err) })
	}
}

func (t *throttle) Err() error {
	err, _ := t.err.Load().(error)
	return err
}

func (t *throttle) Wait() error {
	t.wg.Wait()
	return t.Err()
}
