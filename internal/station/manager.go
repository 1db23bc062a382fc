package station

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns a fixed set of independent stations.
type Manager struct {
	stations []*Station
	byName   map[string]*Station
}

// NewManager creates a manager. Station names must be unique.
func NewManager(stations ...*Station) (*Manager, error) {
	m := &Manager{byName: make(map[string]*Station, len(stations))}
	for _, s := range stations {
		if _, exists := m.byName[s.Name()]; exists {
			return nil, fmt.Errorf("duplicate station name: %s", s.Name())
		}
		m.byName[s.Name()] = s
		m.stations = append(m.stations, s)
	}
	return m, nil
}

// Get returns the station called name.
func (m *Manager) Get(name string) (*Station, error) {
	s, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, name)
	}
	return s, nil
}

// List returns the stations in configuration order.
func (m *Manager) List() []*Station {
	return append([]*Station(nil), m.stations...)
}

// Statuses returns the status of every station.
func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(m.stations))
	for _, s := range m.stations {
		out = append(out, s.Status())
	}
	return out
}

// MountAll mounts every station. On failure the stations mounted so far are
// unmounted again.
func (m *Manager) MountAll(ctx context.Context) error {
	for i, s := range m.stations {
		if err := s.Mount(ctx); err != nil {
			for _, mounted := range m.stations[:i] {
				mounted.Unmount()
			}
			return fmt.Errorf("mount %s: %w", s.Name(), err)
		}
	}
	return nil
}

// UnmountAll unmounts every station concurrently and closes their
// broadcasters.
func (m *Manager) UnmountAll() {
	var wg sync.WaitGroup
	for _, s := range m.stations {
		wg.Go(func() {
			s.Unmount()
			s.Broadcaster().Close()
		})
	}
	wg.Wait()
	slog.Info("station: all stations unmounted", "count", len(m.stations))
}

// Start enables the loop of the named station.
func (m *Manager) Start(name string) (bool, error) {
	s, err := m.Get(name)
	if err != nil {
		return false, err
	}
	return s.Start(), nil
}

// Stop disables the loop of the named station.
func (m *Manager) Stop(name string) (bool, error) {
	s, err := m.Get(name)
	if err != nil {
		return false, err
	}
	return s.Stop(), nil
}
