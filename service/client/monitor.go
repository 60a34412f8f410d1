package client

import (
	"log"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

// Monitor keeps Client stats.
type Monitor struct {
	sync.Mutex
	ackDur          *movingaverage.MovingAverage
	actionsSent     int
	patchesReceived int
	acksReceived    int
	acksRejected    int
	period          time.Duration
	logger          *log.Logger
	stopCh          chan struct{}
}

func (m *Monitor) ActionSent() {
	m.Lock()
	defer m.Unlock()

	m.actionsSent++
}

func (m *Monitor) PatchReceived() {
	m.Lock()
	defer m.Unlock()

	m.patchesReceived++
}

// AckReceived updates the acknowledgment metrics, dur is the submit -> ack latency.
func (m *Monitor) AckReceived(success bool, dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.acksReceived++
	if !success {
		m.acksRejected++
	}
	m.ackDur.Add(float64(dur/time.Microsecond) / 1000.0)
}

// AckDurAvg returns the average submit -> ack latency [ms].
func (m *Monitor) AckDurAvg() float64 {
	m.Lock()
	defer m.Unlock()

	return m.ackDur.Avg()
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
			m.logger.Printf("  - Actions sent / s:     %.2f", float64(m.actionsSent)/secs)
			m.logger.Printf("  - Patches / s:          %.2f", float64(m.patchesReceived)/secs)
			m.logger.Printf("  - Acks / s:             %.2f", float64(m.acksReceived)/secs)
			m.logger.Printf("  - Rejected acks:        %d", m.acksRejected)
			m.logger.Printf("  - Ack dur [ms]:         %.2f", m.ackDur.Avg())
			m.actionsSent = 0
			m.patchesReceived = 0
			m.acksReceived = 0
			m.acksRejected = 0

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
		ackDur: movingaverage.New(3),
		period: period,
		logger: logger,
	}
}
