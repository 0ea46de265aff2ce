package task

import (
	"fmt"
	"sync"
	"time"

	"vidscore/errs"

	"github.com/lithammer/shortuuid/v4"
)

// Store is the process-local task table. Process restart loses all
// task history; that tradeoff is deliberate.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]*Task)}
}

// Create registers a new task in the given initial status.
// Task ids are never reused across requests.
func (s *Store) Create(filename, videoObjectName string, status Status) *Task {
	now := time.Now()
	t := &Task{
		ID:              fmt.Sprintf("%s_%d", shortuuid.New(), now.Unix()),
		Status:          status,
		Filename:        filename,
		VideoObjectName: videoObjectName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t
}

// Get returns a snapshot copy of the task, safe for concurrent readers.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// SetMusic stores music candidates and moves the task to music_ready.
func (s *Store) SetMusic(id string, list []MusicCandidate) error {
	if len(list) == 0 {
		return errs.ErrEmptyMusicList
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return errs.ErrTaskNotFound
	}
	if t.Status.Terminal() {
		return errs.ErrMixInProgress
	}

	t.MusicList = list
	t.MusicURL = list[0].URL
	t.Status = StatusMusicReady
	t.UpdatedAt = time.Now()
	return nil
}

// BeginMix transitions the task to mixing. A task that is already
// mixing or finished cannot be mixed again.
func (s *Store) BeginMix(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return errs.ErrTaskNotFound
	}
	if t.Status == StatusMixing || t.Status.Terminal() {
		return errs.ErrMixInProgress
	}

	t.Status = StatusMixing
	t.UpdatedAt = time.Now()
	return nil
}

// Complete marks the task as finished with its published video URL.
func (s *Store) Complete(id, finalVideoURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = StatusCompleted
	t.FinalVideoURL = finalVideoURL
	t.UpdatedAt = time.Now()
}

// Fail records a failure. Terminal tasks are left untouched.
func (s *Store) Fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = StatusFailed
	t.Error = err.Error()
	t.UpdatedAt = time.Now()
}
