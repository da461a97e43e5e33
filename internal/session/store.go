package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"outfit-studio/internal/imaging"
	"outfit-studio/internal/orchestrator"
)

// Session owns the captured image and the single live run of one user.
type Session struct {
	ID string

	orch *orchestrator.Orchestrator

	mu           sync.Mutex
	image        imaging.SourceImage
	lastActivity time.Time
	meta         map[string]int
}

func (s *Session) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

func (s *Session) Image() imaging.SourceImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// SetImage replaces the source image; any run for the previous image is reset.
func (s *Session) SetImage(img imaging.SourceImage) {
	s.orch.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = img
	s.lastActivity = time.Now()
}

// Clear drops the image and the run.
func (s *Session) Clear() {
	s.SetImage(imaging.SourceImage{})
}

// Int and SetInt hold small per-session front-end values such as a message id.
func (s *Session) Int(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[key]
}

func (s *Session) SetInt(key string, v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		s.meta = make(map[string]int)
	}
	s.meta[key] = v
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

type Options struct {
	MaxSessions int
	IdleTimeout time.Duration
	// NewOrchestrator builds the orchestrator for a fresh session.
	NewOrchestrator func() *orchestrator.Orchestrator
}

type Store struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
	idleTimeout time.Duration
	newOrch     func() *orchestrator.Orchestrator
	now         func() time.Time
}

func NewStore(opts Options) *Store {
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = time.Hour
	}
	newOrch := opts.NewOrchestrator
	if newOrch == nil {
		newOrch = func() *orchestrator.Orchestrator { return orchestrator.New(orchestrator.Options{}) }
	}

	return &Store{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		idleTimeout: idle,
		newOrch:     newOrch,
		now:         time.Now,
	}
}

func (s *Store) Create() *Session {
	return s.GetOrCreate(uuid.NewString())
}

func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok {
		sess.touch(now)
		return sess
	}

	if len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}

	sess := &Session{
		ID:           id,
		orch:         s.newOrch(),
		lastActivity: now,
	}
	s.sessions[id] = sess
	return sess
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.touch(s.now())
	return sess, true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.orch.Reset()
	}
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup drops sessions idle for longer than the idle timeout, skipping
// sessions with a run in flight.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	cutoff := s.now().Add(-s.idleTimeout)
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.orch.Snapshot().Status.Running() {
			continue
		}
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.orch.Reset()
	}
	return len(expired)
}

// RunJanitor calls Cleanup every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		t := sess.idleSince()
		if oldestID == "" || t.Before(oldest) {
			oldestID = id
			oldest = t
		}
	}
	if oldestID == "" {
		return
	}
	sess := s.sessions[oldestID]
	delete(s.sessions, oldestID)
	sess.orch.Reset()
}
