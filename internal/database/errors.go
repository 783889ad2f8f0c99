package database

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrDuplicateSample = errors.New("sample already exists")
	ErrSampleNotFound  = errors.New("sample not found")
	ErrLabelNotFound   = errors.New("label not found")
	ErrInvalidLabel    = errors.New("invalid label name")
	ErrInvalidSampleID = errors.New("invalid sample id")
	ErrStorageIO       = errors.New("storage i/o failure")
)

// StorageError wraps a filesystem failure with the operation and path that
// caused it. It matches ErrStorageIO.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageIO
}

func storageErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Path: path, Err: err}
}
