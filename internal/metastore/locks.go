package metastore

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// collectionLock pairs the in-process mutex with the cross-process lock file
// for one collection.
type collectionLock struct {
	mu sync.Mutex
	fl *flock.Flock
}

// lockCollection acquires exclusive access to one collection's metadata for
// the duration of a mutate. The returned unlock must run on every exit path.
// Locks are per collection, so distinct collections proceed in parallel.
func (s *Store) lockCollection(collectionID string) (unlock func(), err error) {
	s.mu.Lock()
	cl, ok := s.locks[collectionID]
	if !ok {
		cl = &collectionLock{
			fl: flock.New(filepath.Join(s.home, lockDir, collectionID+".lock")),
		}
		s.locks[collectionID] = cl
	}
	s.mu.Unlock()

	cl.mu.Lock()
	if err := cl.fl.Lock(); err != nil {
		cl.mu.Unlock()
		return nil, fmt.Errorf("lock collection %q: %w", collectionID, err)
	}
	return func() {
		_ = cl.fl.Unlock()
		cl.mu.Unlock()
	}, nil
}
