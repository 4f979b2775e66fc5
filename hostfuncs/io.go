package hostfuncs

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"weak"

	"github.com/reglet-dev/scripthost/domain/entities"
	"github.com/reglet-dev/scripthost/stream"
)

// ReaderTypeName is the script type name of stream handles.
const ReaderTypeName = "Reader"

// Streams tracks the Reader handles handed to scripts by the io module. It
// holds them weakly: a handle the script no longer references is collected
// and released by the garbage collector, closing the file with the last one.
// Close releases the handles still alive when a run ends.
type Streams struct {
	stdinSrc io.Reader
	stdin    *stream.Reader
	baseDir  string
	handles  []weak.Pointer[stream.Reader]
	pruneAt  int
	mu       sync.Mutex
	once     sync.Once
}

// minPruneAt is the handle count at which tracking first drops dead entries.
const minPruneAt = 64

// StreamsOption configures Streams.
type StreamsOption func(*Streams)

// WithStdin replaces process standard input as the source of stdin().
func WithStdin(r io.Reader) StreamsOption {
	return func(s *Streams) {
		s.stdinSrc = r
	}
}

// WithBaseDir resolves relative open() paths against dir.
func WithBaseDir(dir string) StreamsOption {
	return func(s *Streams) {
		s.baseDir = dir
	}
}

// NewStreams creates the handle tracker behind the io module.
func NewStreams(opts ...StreamsOption) *Streams {
	s := &Streams{pruneAt: minPruneAt}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReaderObject is the script value wrapping one Reader handle. Copying the
// value in a script duplicates the handle; both copies consume the same
// stream.
type ReaderObject struct {
	r     *stream.Reader
	owner *Streams
}

// TypeName implements entities.Object.
func (o *ReaderObject) TypeName() string { return ReaderTypeName }

// CloneObject implements entities.Cloner.
func (o *ReaderObject) CloneObject() entities.Object {
	return o.owner.track(o.r.Duplicate())
}

// Reader returns the underlying handle.
func (o *ReaderObject) Reader() *stream.Reader { return o.r }

func (s *Streams) track(r *stream.Reader) *ReaderObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) >= s.pruneAt {
		s.prune()
		s.pruneAt = max(minPruneAt, 2*len(s.handles))
	}
	s.handles = append(s.handles, weak.Make(r))
	return &ReaderObject{r: r, owner: s}
}

// prune drops collected and released handles. s.mu is held.
func (s *Streams) prune() {
	s.handles = slices.DeleteFunc(s.handles, func(p weak.Pointer[stream.Reader]) bool {
		r := p.Value()
		return r == nil || r.Released()
	})
}

// Stdin returns a new handle on standard input. All stdin handles share one
// buffer, kept alive by s until Close.
func (s *Streams) Stdin() *ReaderObject {
	s.once.Do(func() {
		if s.stdinSrc != nil {
			s.stdin = stream.New("stdin", s.stdinSrc)
		} else {
			s.stdin = stream.Stdin()
		}
	})
	return s.track(s.stdin.Duplicate())
}

// Open opens path for reading.
func (s *Streams) Open(path string) (*ReaderObject, error) {
	if s.baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(s.baseDir, path)
	}
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	return s.track(r), nil
}

// Close releases every handle created through s that is still alive.
func (s *Streams) Close() error {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.pruneAt = minPruneAt
	stdin := s.stdin
	s.mu.Unlock()

	var errs []error
	for _, p := range handles {
		r := p.Value()
		if r == nil {
			continue
		}
		if err := r.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if stdin != nil {
		if err := stdin.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenHandles counts live handles created through s that are not yet
// released, including the shared stdin handle.
func (s *Streams) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.handles {
		if r := p.Value(); r != nil && !r.Released() {
			n++
		}
	}
	if s.stdin != nil && !s.stdin.Released() {
		n++
	}
	return n
}

// Module returns the io capability module: stdin(), open(path), line(r),
// json(r), close(r) and the Reader properties name and offset. close drops
// the one handle it is given; the stream stays open while other copies of
// the handle are alive.
func (s *Streams) Module() Module {
	return Module{
		Name:    "io",
		Mode:    ModeGlobal,
		Feature: "io",
		Entries: []entities.Descriptor{
			Func0("stdin", func(context.Context) (*ReaderObject, error) {
				return s.Stdin(), nil
			}),
			Func1("open", func(_ context.Context, path string) (*ReaderObject, error) {
				return s.Open(path)
			}),
			Func1("line", func(_ context.Context, o *ReaderObject) (entities.Value, error) {
				line, ok, err := o.r.ReadLine()
				if err != nil || !ok {
					return entities.Null, err
				}
				return entities.Str(line), nil
			}),
			Func1("json", func(_ context.Context, o *ReaderObject) (entities.Value, error) {
				v, ok, err := o.r.ReadJSON()
				if err != nil || !ok {
					return entities.Null, err
				}
				return entities.FromGo(v)
			}),
			Func1("close", func(_ context.Context, o *ReaderObject) (entities.Value, error) {
				return entities.Null, o.r.Release()
			}),
			Property(ReaderTypeName, "name", func(o *ReaderObject) (string, error) {
				return o.r.Name(), nil
			}),
			Property(ReaderTypeName, "offset", func(o *ReaderObject) (int64, error) {
				return o.r.Offset(), nil
			}),
		},
	}
}
