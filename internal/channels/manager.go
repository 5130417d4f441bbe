package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Manager manages all registered channels and routes outbound messages.
// It implements Transport by delivering through the primary channel.
type Manager struct {
	channels map[string]Channel
	primary  string
	mu       sync.RWMutex
}

// NewManager creates a new channel manager.
// Channels are registered externally via RegisterChannel.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// StartAll starts all registered channels.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	for name, channel := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := channel.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
	}
	slog.Info("all channels started")
	return nil
}

// StopAll gracefully stops all channels.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, channel := range m.channels {
		slog.Info("stopping channel", "channel", name)
		if err := channel.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}
	return nil
}

// GetChannel returns a channel by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

// GetStatus returns the running status of all channels.
func (m *Manager) GetStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]interface{})
	for name, channel := range m.channels {
		status[name] = map[string]interface{}{
			"running": channel.IsRunning(),
			"primary": name == m.primary,
		}
	}
	return status
}

// GetEnabledChannels returns the names of all enabled channels, sorted.
func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterChannel adds a channel to the manager. The first registered
// channel becomes the primary one.
func (m *Manager) RegisterChannel(name string, channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = channel
	if m.primary == "" {
		m.primary = name
	}
}

// UnregisterChannel removes a channel from the manager.
func (m *Manager) UnregisterChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, name)
	if m.primary == name {
		m.primary = ""
		for n := range m.channels {
			m.primary = n
			break
		}
	}
}

// SendToChannel delivers text through a specific channel by name.
func (m *Manager) SendToChannel(ctx context.Context, channelName, recipient, content string) error {
	m.mu.RLock()
	channel, exists := m.channels[channelName]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("channel %s not found", channelName)
	}
	return channel.SendText(ctx, recipient, content)
}

func (m *Manager) primaryChannel() (Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[m.primary]
	if !ok {
		return nil, fmt.Errorf("no channel registered")
	}
	return ch, nil
}

// SendText delivers text through the primary channel.
func (m *Manager) SendText(ctx context.Context, recipient, text string) error {
	ch, err := m.primaryChannel()
	if err != nil {
		return err
	}
	return ch.SendText(ctx, recipient, text)
}

// SendPresence asserts presence through the primary channel.
func (m *Manager) SendPresence(ctx context.Context, recipient, state string, ttl time.Duration) error {
	ch, err := m.primaryChannel()
	if err != nil {
		return err
	}
	return ch.SendPresence(ctx, recipient, state, ttl)
}
