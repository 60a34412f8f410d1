package server

import (
	"log"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

// Monitor keeps Session stats.
type Monitor struct {
	sync.Mutex
	actionsAccepted int
	actionsRejected int
	broadcasts      int
	applyDur        *movingaverage.MovingAverage
	broadcastDur    *movingaverage.MovingAverage
	period          time.Duration
	logger          *log.Logger
	stopCh          chan struct{}
}

// ActionHandled updates the action handling metrics.
func (m *Monitor) ActionHandled(accepted bool, dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	if accepted {
		m.actionsAccepted++
	} else {
		m.actionsRejected++
	}
	m.applyDur.Add(float64(dur/time.Microsecond) / 1000.0)
}

// BroadcastServed updates the patch broadcast duration metric.
func (m *Monitor) BroadcastServed(receivers int, dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.broadcasts += receivers
	m.broadcastDur.Add(float64(dur/time.Microsecond) / 1000.0)
}

// Stats returns accepted / rejected actions counters of the current period.
func (m *Monitor) Stats() (accepted, rejected int) {
	m.Lock()
	defer m.Unlock()

	return m.actionsAccepted, m.actionsRejected
}

// Start starts the Monitor worker.
func (m *Monitor) Start() {
	if m.stopCh != nil {
		return
	}

	m.stopCh = make(chan struct{})
	go m.worker()
}

// Stop stops the Monitor worker.
func (m *Monitor) Stop() {
	if m.stopCh == nil {
		return
	}

	close(m.stopCh)
}

// worker does the actual job.
func (m *Monitor) worker() {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			// Stop the monitor
			return
		case <-ticker.C:
			// Print the report
			m.Lock()

			secs := float64(m.period) / float64(time.Second)
			m.logger.Printf("Monitor:")
			m.logger.Printf("  - Accepted actions / s:  %.2f", float64(m.actionsAccepted)/secs)
			m.logger.Printf("  - Rejected actions / s:  %.2f", float64(m.actionsRejected)/secs)
			m.logger.Printf("  - Messages sent / s:     %.2f", float64(m.broadcasts)/secs)
			m.logger.Printf("  - Apply dur [ms]:        %.2f", m.applyDur.Avg())
			m.logger.Printf("  - Broadcast dur [ms]:    %.2f", m.broadcastDur.Avg())
			m.actionsAccepted = 0
			m.actionsRejected = 0
			m.broadcasts = 0

			m.Unlock()
		}
	}
}

// NewMonitor creates a new Monitor object reporting every period.
func NewMonitor(period time.Duration, logger *log.Logger) *Monitor {
	if period <= 0 {
		period = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Monitor{
		applyDur:     movingaverage.New(5),
		broadcastDur: movingaverage.New(5),
		period:       period,
		logger:       logger,
	}
}
