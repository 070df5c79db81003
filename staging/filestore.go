package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/c360/telelog/errors"
)

// FileStore is a SegmentStore backed by files in a directory. Each segment is
// one file; discarding a segment removes its file.
type FileStore struct {
	dir     string
	ownsDir bool
}

// NewFileStore creates a file-backed segment store in dir. If dir is empty a
// temporary directory is created and removed again by Cleanup.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "telelog-staging-")
		if err != nil {
			return nil, errors.WrapFatal(err, "FileStore", "NewFileStore", "create temp directory")
		}
		return &FileStore{dir: tmp, ownsDir: true}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "FileStore", "NewFileStore", "create directory")
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the store's segment files.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// Open implements SegmentStore, creating a new segment file.
func (fs *FileStore) Open() (Segment, error) {
	u := uuid.New()
	name := fmt.Sprintf("log-%x.seg", u[:4])
	path := filepath.Join(fs.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WrapTransient(err, "FileStore", "Open", "create segment file")
	}
	return &fileSegment{f: f, path: path}, nil
}

// Cleanup removes the store's directory if the store created it. Stores over
// a caller-supplied directory leave it in place.
func (fs *FileStore) Cleanup() error {
	if !fs.ownsDir {
		return nil
	}
	if err := os.RemoveAll(fs.dir); err != nil {
		return errors.WrapTransient(err, "FileStore", "Cleanup", "remove directory")
	}
	return nil
}

// fileSegment is one segment file. Content accumulates by appending; Close
// reads the whole file back.
type fileSegment struct {
	f      *os.File
	path   string
	n      int64
	closed bool
}

func (s *fileSegment) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrSegmentClosed, s.path),
			"fileSegment", "Write", "append")
	}
	n, err := s.f.Write(p)
	s.n += int64(n)
	if err != nil {
		return n, errors.WrapTransient(err, "fileSegment", "Write", "append")
	}
	return n, nil
}

func (s *fileSegment) Close() ([]byte, error) {
	if s.closed {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrSegmentClosed, s.path),
			"fileSegment", "Close", "finalize")
	}
	s.closed = true
	if err := s.f.Close(); err != nil {
		return nil, errors.WrapTransient(err, "fileSegment", "Close", "flush file")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.WrapTransient(err, "fileSegment", "Close", "read content")
	}
	return data, nil
}

func (s *fileSegment) Discard() error {
	if !s.closed {
		s.closed = true
		if err := s.f.Close(); err != nil {
			return errors.WrapTransient(err, "fileSegment", "Discard", "close file")
		}
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.WrapTransient(err, "fileSegment", "Discard", "remove file")
	}
	return nil
}

func (s *fileSegment) Empty() bool {
	return s.n == 0
}
