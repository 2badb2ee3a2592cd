// Package queue manages the playback queue.
package queue

import (
	"sync"
)

// TrackMetadata contains metadata for a queued track
type TrackMetadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Duration int64  `json:"duration,omitempty"`
	ArtPath  string `json:"artPath,omitempty"`
}

// QueueItem represents an item in the playback queue
type QueueItem struct {
	Path     string
	Metadata *TrackMetadata
}

// ChangeCallback is called when the queue state changes
type ChangeCallback func()

// RepeatMode represents the repeat behavior
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// Manager manages the playback queue
type Manager struct {
	mu       sync.RWMutex
	items    []QueueItem
	index    int
	repeat   RepeatMode
	onChange ChangeCallback
}

// NewManager creates a new queue manager
func NewManager() *Manager {
	return &Manager{
		items:  make([]QueueItem, 0),
		index:  -1,
		repeat: RepeatOff,
	}
}

// SetOnChange sets a callback to be called when the queue state changes
func (m *Manager) SetOnChange(callback ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = callback
}

// notifyChange calls the onChange callback if set (must be called without lock held)
func (m *Manager) notifyChange() {
	m.mu.RLock()
	callback := m.onChange
	m.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

// Set replaces the entire queue with new paths
func (m *Manager) Set(paths []string) {
	m.mu.Lock()

	m.items = make([]QueueItem, len(paths))
	for i, path := range paths {
		m.items[i] = QueueItem{Path: path}
	}
	m.index = -1

	m.mu.Unlock()
	m.notifyChange()
}

// SetWithMetadata replaces the queue with paths and metadata
func (m *Manager) SetWithMetadata(items []QueueItem) {
	m.mu.Lock()

	m.items = make([]QueueItem, len(items))
	copy(m.items, items)
	m.index = -1

	m.mu.Unlock()
	m.notifyChange()
}

// Append adds paths to the end of the queue
func (m *Manager) Append(paths []string) {
	m.mu.Lock()

	for _, path := range paths {
		m.items = append(m.items, QueueItem{Path: path})
	}

	m.mu.Unlock()
	m.notifyChange()
}

// AppendWithMetadata adds items with metadata to the queue
func (m *Manager) AppendWithMetadata(items []QueueItem) {
	m.mu.Lock()
	m.items = append(m.items, items...)
	m.mu.Unlock()
	m.notifyChange()
}

// Clear clears the queue
func (m *Manager) Clear() {
	m.mu.Lock()

	m.items = make([]QueueItem, 0)
	m.index = -1

	m.mu.Unlock()
	m.notifyChange()
}

// Next moves to the next track and returns it
func (m *Manager) Next() (string, *TrackMetadata) {
	m.mu.Lock()

	if len(m.items) == 0 {
		m.mu.Unlock()
		return "", nil
	}

	// Repeat-one stays on the current track
	if m.repeat == RepeatOne && m.index >= 0 && m.index < len(m.items) {
		item := m.items[m.index]
		m.mu.Unlock()
		return item.Path, item.Metadata
	}

	m.index++

	if m.index >= len(m.items) {
		if m.repeat == RepeatAll {
			m.index = 0
		} else {
			m.index = len(m.items) - 1
			m.mu.Unlock()
			return "", nil
		}
	}

	item := m.items[m.index]
	m.mu.Unlock()
	m.notifyChange()
	return item.Path, item.Metadata
}

// Prev moves to the previous track and returns it
func (m *Manager) Prev() (string, *TrackMetadata) {
	m.mu.Lock()

	if len(m.items) == 0 {
		m.mu.Unlock()
		return "", nil
	}

	// Repeat-one stays on the current track
	if m.repeat == RepeatOne && m.index >= 0 && m.index < len(m.items) {
		item := m.items[m.index]
		m.mu.Unlock()
		return item.Path, item.Metadata
	}

	m.index--

	if m.index < 0 {
		if m.repeat == RepeatAll {
			m.index = len(m.items) - 1
		} else {
			m.index = 0
			m.mu.Unlock()
			return "", nil
		}
	}

	item := m.items[m.index]
	m.mu.Unlock()
	m.notifyChange()
	return item.Path, item.Metadata
}

// Current returns the current track
func (m *Manager) Current() (string, *TrackMetadata) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.index < 0 || m.index >= len(m.items) {
		return "", nil
	}

	item := m.items[m.index]
	return item.Path, item.Metadata
}

// SetIndex sets the current queue index
func (m *Manager) SetIndex(index int) bool {
	m.mu.Lock()

	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return false
	}

	m.index = index
	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Position returns the current index and queue size
func (m *Manager) Position() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.index, len(m.items)
}

// GetItems returns all items in the queue
func (m *Manager) GetItems() []QueueItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]QueueItem, len(m.items))
	copy(items, m.items)
	return items
}

// SetRepeat sets the repeat mode
func (m *Manager) SetRepeat(mode RepeatMode) {
	m.mu.Lock()
	m.repeat = mode
	m.mu.Unlock()
	m.notifyChange()
}

// GetRepeat returns the current repeat mode
func (m *Manager) GetRepeat() RepeatMode {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.repeat
}

// Remove removes an item at the specified index
func (m *Manager) Remove(index int) bool {
	m.mu.Lock()

	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return false
	}

	m.items = append(m.items[:index], m.items[index+1:]...)

	if index < m.index {
		m.index--
	} else if index == m.index && m.index >= len(m.items) {
		// Current track removed from the tail
		m.index = len(m.items) - 1
	}

	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Insert inserts an item at the specified index
func (m *Manager) Insert(index int, path string, metadata *TrackMetadata) bool {
	m.mu.Lock()

	if index < 0 || index > len(m.items) {
		m.mu.Unlock()
		return false
	}

	item := QueueItem{Path: path, Metadata: metadata}
	m.items = append(m.items[:index], append([]QueueItem{item}, m.items[index:]...)...)

	if index <= m.index {
		m.index++
	}

	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Move moves an item from one index to another
func (m *Manager) Move(fromIndex, toIndex int) bool {
	m.mu.Lock()

	if fromIndex < 0 || fromIndex >= len(m.items) {
		m.mu.Unlock()
		return false
	}
	if toIndex < 0 || toIndex >= len(m.items) {
		m.mu.Unlock()
		return false
	}
	if fromIndex == toIndex {
		m.mu.Unlock()
		return true
	}

	item := m.items[fromIndex]
	m.items = append(m.items[:fromIndex], m.items[fromIndex+1:]...)

	if toIndex > fromIndex {
		toIndex--
	}
	m.items = append(m.items[:toIndex], append([]QueueItem{item}, m.items[toIndex:]...)...)

	if m.index == fromIndex {
		m.index = toIndex
	} else if fromIndex < m.index && toIndex >= m.index {
		m.index--
	} else if fromIndex > m.index && toIndex <= m.index {
		m.index++
	}

	m.mu.Unlock()
	m.notifyChange()
	return true
}
