// Package stream implements shared, lock-guarded byte streams that can be
// consumed one line or one JSON value at a time through any number of
// duplicate handles.
//
// A Reader is a handle; every handle duplicated from another observes the
// same consumption cursor. Each read is a critical section on the shared
// lock, so bytes are consumed exactly once no matter which handle reads them.
package stream

import (
	"bufio"
	"errors"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
)

// ErrReleased is wrapped by the IOError returned when a released handle is used.
var ErrReleased = errors.New("reader handle released")

// bufferSize is the size of the shared read buffer.
const bufferSize = 64 * 1024

// source is the single underlying stream shared by all handles.
type source struct {
	closer io.Closer
	r      *bufio.Reader
	name   string
	mu     sync.Mutex
	refs   int
	offset int64
	closed bool
}

func (s *source) retain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs++
}

// release drops one reference and closes the source with the last one.
func (s *source) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs--
	if s.refs > 0 || s.closed {
		return nil
	}
	s.closed = true
	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return domainerrors.NewIOError("close", s.name, err)
	}
	return nil
}

// Reader is one handle on a shared stream.
type Reader struct {
	src      *source
	cleanup  runtime.Cleanup
	released atomic.Bool
}

func newHandle(src *source) *Reader {
	src.retain()
	r := &Reader{src: src}
	r.cleanup = runtime.AddCleanup(r, func(s *source) { _ = s.release() }, src)
	return r
}

func newSource(name string, rd io.Reader, closer io.Closer) *Reader {
	return newHandle(&source{
		name:   name,
		r:      bufio.NewReaderSize(rd, bufferSize),
		closer: closer,
	})
}

// Open opens the file at path. The file is closed when the last handle
// sharing it is released.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domainerrors.NewIOError("open", path, err)
	}
	return newSource(path, f, f), nil
}

// Stdin returns a handle on process standard input. Standard input is never
// closed. Each call creates an independent buffer, so callers that hand out
// several stdin handles should Duplicate one instead of calling Stdin again.
func Stdin() *Reader {
	return newSource("stdin", os.Stdin, nil)
}

// New wraps rd without taking ownership of it.
func New(name string, rd io.Reader) *Reader {
	return newSource(name, rd, nil)
}

// NewOwned wraps rc and closes it when the last handle is released.
func NewOwned(name string, rc io.ReadCloser) *Reader {
	return newSource(name, rc, rc)
}

// Name returns the name of the underlying stream.
func (r *Reader) Name() string {
	return r.src.name
}

// Duplicate returns a new handle on the same stream. No data is copied.
func (r *Reader) Duplicate() *Reader {
	return newHandle(r.src)
}

// Release drops this handle. It is safe to call more than once; the
// underlying stream is closed when the last handle is released.
func (r *Reader) Release() error {
	if r.released.Swap(true) {
		return nil
	}
	r.cleanup.Stop()
	return r.src.release()
}

// Released reports whether Release has been called on this handle.
func (r *Reader) Released() bool {
	return r.released.Load()
}

// Offset returns the number of bytes consumed from the shared stream.
func (r *Reader) Offset() int64 {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()
	return r.src.offset
}

// acquire locks the shared stream for one unit of work. The caller must
// unlock src.mu when err is nil.
func (r *Reader) acquire(op string) (*source, error) {
	if r.released.Load() {
		return nil, &domainerrors.IOError{Op: op, Path: r.src.name, Err: ErrReleased}
	}
	s := r.src
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &domainerrors.IOError{Op: op, Path: s.name, Err: os.ErrClosed}
	}
	return s, nil
}

// ReadLine returns the next line including its terminator. ok is false once
// no bytes remain; that end marker repeats on every later call. The final
// line of a stream may lack a terminator.
func (r *Reader) ReadLine() (line string, ok bool, err error) {
	s, err := r.acquire("read")
	if err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()

	line, err = s.r.ReadString('\n')
	s.offset += int64(len(line))
	switch {
	case err == nil:
		return line, true, nil
	case errors.Is(err, io.EOF):
		if line == "" {
			return "", false, nil
		}
		return line, true, nil
	default:
		return "", false, domainerrors.NewIOError("read", s.name, err)
	}
}
