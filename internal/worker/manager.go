package worker

import (
	"sort"
	"sync"
	"time"

	"github.com/pccr10001/mbpd/internal/modem"
	"github.com/pccr10001/mbpd/pkg/logger"
)

// Detector is the part of modem.Detector the manager drives.
type Detector interface {
	ListPorts() ([]string, error)
	Detect(portName string) (*modem.Detection, error)
}

// Manager watches the serial ports and identifies the carrier of every
// modem that shows up. A port is detected once while it stays present.
type Manager struct {
	newDetector func() Detector
	interval    time.Duration

	mu       sync.RWMutex
	results  map[string]*modem.Detection
	failed   map[string]bool // ports that did not answer as a modem
	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager scans every interval with a detector from newDetector. The
// factory runs once per scan so a reloaded provider database is picked up.
func NewManager(newDetector func() Detector, interval time.Duration) *Manager {
	return &Manager{
		newDetector: newDetector,
		interval:    interval,
		results:     make(map[string]*modem.Detection),
		failed:      make(map[string]bool),
		stop:        make(chan struct{}),
	}
}

func (m *Manager) Start() {
	logger.Log.Info("Modem watcher started, scanning ports every ", m.interval)

	go func() {
		// Initial scan
		m.ScanAndManage()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.ScanAndManage()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) ScanAndManage() {
	d := m.newDetector()
	ports, err := d.ListPorts()
	if err != nil {
		logger.Log.Errorf("Failed to list serial ports: %v", err)
		return
	}

	present := make(map[string]bool, len(ports))
	for _, p := range ports {
		present[p] = true
	}

	// 1. Forget ports that are gone
	m.mu.Lock()
	for p := range m.results {
		if !present[p] {
			logger.Log.Infof("Port %s gone", p)
			delete(m.results, p)
		}
	}
	for p := range m.failed {
		if !present[p] {
			delete(m.failed, p)
		}
	}
	var fresh []string
	for _, p := range ports {
		if _, ok := m.results[p]; !ok && !m.failed[p] {
			fresh = append(fresh, p)
		}
	}
	m.mu.Unlock()

	// 2. Detect new ports without holding the lock; detection talks to
	// the hardware and can take seconds.
	for _, p := range fresh {
		logger.Log.Infof("Found new port: %s. Detecting carrier...", p)
		det, err := d.Detect(p)

		m.mu.Lock()
		if err != nil {
			logger.Log.Debugf("Port %s is not a usable modem: %v", p, err)
			m.failed[p] = true
		} else {
			m.results[p] = det
		}
		m.mu.Unlock()
	}
}

// Detections returns the current results ordered by port name.
func (m *Manager) Detections() []*modem.Detection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*modem.Detection, 0, len(m.results))
	for _, det := range m.results {
		out = append(out, det)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}
