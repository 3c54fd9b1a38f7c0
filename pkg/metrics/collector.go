package metrics

import "time"

// MasterView is the subset of the master server's state the collector polls
// on an interval. pkg/master.Server satisfies this interface; tests can
// supply a stub.
type MasterView interface {
	WorkerCount() int
	SnapshotFileCount() int
	PendingDAPIRequestCount() int
}

// Collector republishes point-in-time gauges from a MasterView that have
// no natural call site to push an update from directly.
type Collector struct {
	view   MasterView
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector for the given master view.
func NewCollector(view MasterView) *Collector {
	return &Collector{
		view:   view,
		stopCh: make(chan struct{}),
	}
}

// Start begins polling on a 15 second interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	WorkersConnected.Set(float64(c.view.WorkerCount()))
	SnapshotFilesTotal.Set(float64(c.view.SnapshotFileCount()))
	DAPIPendingRequests.Set(float64(c.view.PendingDAPIRequestCount()))
}
