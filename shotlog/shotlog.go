// Package shotlog keeps completed shots for map-display collaborators.
package shotlog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bunchim/archer/model"
)

var (
	// ErrShotNotFound is returned by Get for unknown IDs.
	ErrShotNotFound = errors.New("shot not found")
	// ErrShotExists is returned by Add for duplicate IDs.
	ErrShotExists = errors.New("shot already exists")
)

// Event is emitted to subscribers when a shot lands. Source, Target and Hit
// travel together so a map display can draw all three.
type Event struct {
	Shot model.Shot
	// Seq is the 1-based arrival position of the shot in the log.
	Seq int
}

// Log is an in-memory, thread-safe store of shots in arrival order.
type Log struct {
	mu sync.RWMutex

	shots []model.Shot
	byID  map[string]int
	limit int
	seq   int

	nextSub int
	subs    map[int]func(Event)
	order   []int
}

// Option configures a Log.
type Option func(*Log)

// WithLimit keeps at most n shots, discarding the oldest. n <= 0 is unbounded.
func WithLimit(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.limit = n
		}
	}
}

// New constructs an empty Log.
func New(opts ...Option) *Log {
	l := &Log{
		byID: make(map[string]int),
		subs: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add appends a shot and notifies subscribers. It returns an error if the
// ID is empty or already present.
func (l *Log) Add(shot model.Shot) error {
	if shot.ID == "" {
		return fmt.Errorf("shot ID must not be empty")
	}

	l.mu.Lock()
	if _, exists := l.byID[shot.ID]; exists {
		l.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrShotExists, shot.ID)
	}
	l.shots = append(l.shots, shot)
	if l.limit > 0 && len(l.shots) > l.limit {
		l.shots = append(l.shots[:0], l.shots[len(l.shots)-l.limit:]...)
	}
	l.reindexLocked()
	l.seq++
	event := Event{Shot: shot, Seq: l.seq}
	subs := make([]func(Event), 0, len(l.order))
	for _, id := range l.order {
		subs = append(subs, l.subs[id])
	}
	l.mu.Unlock()

	// Notify outside the lock so subscribers may read the log.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

func (l *Log) reindexLocked() {
	clear(l.byID)
	for i, s := range l.shots {
		l.byID[s.ID] = i
	}
}

// Get returns the shot with the given ID.
func (l *Log) Get(id string) (model.Shot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return model.Shot{}, fmt.Errorf("%w: %q", ErrShotNotFound, id)
	}
	return l.shots[idx], nil
}

// Last returns the most recent shot, if any.
func (l *Log) Last() (model.Shot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.shots) == 0 {
		return model.Shot{}, false
	}
	return l.shots[len(l.shots)-1], true
}

// List returns a snapshot of all retained shots, oldest first.
func (l *Log) List() []model.Shot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Shot, len(l.shots))
	copy(out, l.shots)
	return out
}

// Len returns the number of retained shots.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.shots)
}

// Subscribe registers a callback for new shots. It returns an unsubscribe
// function that is safe to call more than once.
func (l *Log) Subscribe(fn func(Event)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.order = append(l.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
			for i, v := range l.order {
				if v == id {
					l.order = append(l.order[:i], l.order[i+1:]...)
					break
				}
			}
		})
	}
}
