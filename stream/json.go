package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
)

// ReadJSON decodes the next top-level JSON value. Numbers are returned as
// json.Number, objects as map[string]any and arrays as []any. ok is false
// when only whitespace remains. The bytes following the value, including a
// trailing newline, are left unread.
func (r *Reader) ReadJSON() (v any, ok bool, err error) {
	raw, ok, err := r.ReadRawJSON()
	if err != nil || !ok {
		return nil, ok, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, false, &domainerrors.DecodeError{Source: r.src.name, Err: err}
	}
	return v, true, nil
}

// ReadRawJSON returns the bytes of the next top-level JSON value without
// decoding them. Leading whitespace is skipped. A value cut short by the end
// of the stream is a DecodeError, as is a value that is not valid JSON; in
// both cases the offending bytes are consumed.
func (r *Reader) ReadRawJSON() (raw []byte, ok bool, err error) {
	s, err := r.acquire("read")
	if err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	if err := s.skipSpace(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		return nil, false, domainerrors.NewIOError("read", s.name, err)
	}

	start := s.offset
	var sc scanner
	if err := sc.scan(s); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		var syn *syntaxError
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &syn) {
			return nil, false, &domainerrors.DecodeError{Source: s.name, Offset: start, Err: err}
		}
		return nil, false, domainerrors.NewIOError("read", s.name, err)
	}

	if !json.Valid(sc.buf.Bytes()) {
		return nil, false, &domainerrors.DecodeError{
			Source: s.name,
			Offset: start,
			Err:    fmt.Errorf("invalid JSON value %q", truncate(sc.buf.String(), 40)),
		}
	}
	return sc.buf.Bytes(), true, nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDelimiter(b byte) bool {
	switch b {
	case '{', '}', '[', ']', ',', ':', '"':
		return true
	}
	return isSpace(b)
}

func (s *source) skipSpace() error {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if !isSpace(b) {
			return s.r.UnreadByte()
		}
		s.offset++
	}
}

type syntaxError struct {
	msg string
}

func (e *syntaxError) Error() string { return e.msg }

// scanner collects the bytes of exactly one JSON value from a source.
type scanner struct {
	buf bytes.Buffer
}

func (sc *scanner) next(s *source) (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.offset++
	sc.buf.WriteByte(b)
	return b, nil
}

func (sc *scanner) scan(s *source) error {
	first, err := sc.next(s)
	if err != nil {
		return err
	}
	switch first {
	case '{', '[':
		return sc.scanComposite(s)
	case '"':
		return sc.scanString(s)
	case '}', ']', ',', ':':
		return &syntaxError{msg: fmt.Sprintf("unexpected %q at start of value", first)}
	default:
		return sc.scanScalar(s)
	}
}

// scanComposite reads until the bracket opened by the first byte is closed.
func (sc *scanner) scanComposite(s *source) error {
	depth := 1
	for depth > 0 {
		b, err := sc.next(s)
		if err != nil {
			return err
		}
		switch b {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case '"':
			if err := sc.scanString(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanString reads up to and including the closing quote.
func (sc *scanner) scanString(s *source) error {
	escaped := false
	for {
		b, err := sc.next(s)
		if err != nil {
			return err
		}
		switch {
		case escaped:
			escaped = false
		case b == '\\':
			escaped = true
		case b == '"':
			return nil
		}
	}
}

// scanScalar reads a number or literal up to the next delimiter, which is
// left unread. The end of the stream terminates the scalar normally.
func (sc *scanner) scanScalar(s *source) error {
	for {
		p, err := s.r.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if isDelimiter(p[0]) {
			return nil
		}
		if _, err := sc.next(s); err != nil {
			return err
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
