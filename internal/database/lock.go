package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// lockTable hands out one in-process mutex per lock name. The mutex
// serializes goroutines of this process, the flock on the lock file
// serializes other processes.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) get(name string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[name]
	if !ok {
		m = &sync.Mutex{}
		t.locks[name] = m
	}
	return m
}

// LockLabel acquires the exclusive mutation lock for label and returns the
// function that releases it. Mutations of different labels do not contend.
func (s *Store) LockLabel(label string) (func(), error) {
	name, err := NormalizeLabel(label)
	if err != nil {
		return nil, err
	}
	return s.lock(name)
}

func (s *Store) lock(name string) (func(), error) {
	m := s.locks.get(name)
	m.Lock()

	f, err := s.lockFile(name)
	if err != nil {
		m.Unlock()
		return nil, err
	}

	return func() {
		if err := unlockFile(f); err != nil {
			s.logger.Sugar().Warnw("failed to release lock", "path", f.Name(), "error", err)
		}
		m.Unlock()
	}, nil
}

// lockFile opens (creating if needed) the lock file for name and takes an
// exclusive advisory lock on it.
func (s *Store) lockFile(name string) (*os.File, error) {
	dir := filepath.Join(s.root, LockDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr("lock", dir, err)
	}

	path := filepath.Join(dir, name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, storageErr("lock", path, err)
	}

	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, storageErr("lock", path, fmt.Errorf("failed to acquire exclusive lock: %w", err))
	}
	return f, nil
}

func unlockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
