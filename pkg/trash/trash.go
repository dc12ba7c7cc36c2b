// Package trash implements safe asynchronous file deletion.
//
// Doomed files are renamed into a staging directory under the system temp
// directory, which keeps deletion off the hot path: rename is O(1) while
// removing a directory tree is not. Emptying detaches the current staging
// root and deletes the detached tree on a single background goroutine, so an
// in-flight mover never sees a half-deleted trash root.
package trash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittocache/internal/logger"
)

// ErrClosed is returned when operations are attempted on a closed service.
var ErrClosed = errors.New("trash service is closed")

// Service owns a staging directory and a serial deletion executor.
type Service struct {
	mu   sync.Mutex
	cond *sync.Cond
	base string // parent directory for staging roots
	root string // current staging root, empty until first move

	jobs   []func()
	closed bool
	done   chan struct{}
}

// New creates a trash service staging under dir. An empty dir uses the
// system temp directory. The staging parent is named with a process-unique
// token so concurrent processes never collide.
func New(dir string) *Service {
	if dir == "" {
		dir = os.TempDir()
	}

	s := &Service{
		base: filepath.Join(dir, "com.marmos91.dittocache."+uuid.NewString()),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	go s.worker()
	return s
}

var (
	sharedOnce sync.Once
	shared     *Service
)

// Shared returns the process-wide trash service, creating it on first use.
func Shared() *Service {
	sharedOnce.Do(func() {
		shared = New("")
	})
	return shared
}

// MoveToTrash renames path into the staging root, creating the root lazily.
// The renamed file gets a fresh unique name so moves never collide.
func (s *Service) MoveToTrash(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.root == "" {
		root := filepath.Join(s.base, uuid.NewString())
		if err := os.MkdirAll(root, 0700); err != nil {
			return fmt.Errorf("creating trash root: %w", err)
		}
		s.root = root
	}

	target := filepath.Join(s.root, uuid.NewString())
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("moving %s to trash: %w", path, err)
	}

	return nil
}

// Empty schedules deletion of everything currently in the trash. The current
// staging root is detached under the lock; moves that race with the deletion
// create and use a fresh root.
func (s *Service) Empty() {
	s.post(func() {
		s.mu.Lock()
		detached := s.root
		s.root = ""
		s.mu.Unlock()

		if detached == "" {
			return
		}
		if err := os.RemoveAll(detached); err != nil {
			logger.Error("Trash: failed to remove staging root", "path", detached, "error", err)
		}
	})
}

// Close drains pending deletions and removes the staging parent. The service
// is unusable afterwards. It waits at most timeout for the drain.
func (s *Service) Close(timeout time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(timeout):
		logger.Warn("Trash: close timed out")
	}

	if err := os.RemoveAll(s.base); err != nil {
		logger.Error("Trash: failed to remove staging parent", "path", s.base, "error", err)
	}
}

// post hands a job to the serial executor. Jobs posted after Close are
// dropped.
func (s *Service) post(job func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.jobs = append(s.jobs, job)
	s.cond.Signal()
}

// worker runs deletion jobs one at a time.
func (s *Service) worker() {
	defer close(s.done)

	s.mu.Lock()
	for {
		for len(s.jobs) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.cond.Wait()
		}
		job := s.jobs[0]
		s.jobs = s.jobs[1:]
		s.mu.Unlock()

		job()

		s.mu.Lock()
	}
}
