package database

// On-disk layout of the index root
const (
	// SampleExt is the extension of sample and centroid files
	SampleExt = ".faceprint"

	// CentroidName is the file name (without extension) of a label's centroid.
	// It is reserved and can never be used as a sample id.
	CentroidName = "avg"

	// MetaFile holds index-wide metadata such as the embedding dimension.
	// The leading dot keeps it out of the label namespace.
	MetaFile = ".index.yaml"

	// LockDir holds advisory lock files. Lock files are never deleted so a
	// waiter never ends up holding a lock on an unlinked file.
	LockDir = ".locks"

	// indexLockName guards creation of MetaFile
	indexLockName = ".index"

	// trashPrefix marks label directories that are being removed
	trashPrefix = ".trash-"

	// MaxLabelLength is the maximum label length in bytes, leaving room for
	// the lock file suffix within common NAME_MAX limits
	MaxLabelLength = 200
)
