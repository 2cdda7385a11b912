// Package stream turns raw process output into lazy line sequences.
package stream

import (
	"bufio"
	"context"
	"io"
	"iter"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// maxLineSize is the biggest single line Seq delivers. Longer lines
// fail the iteration with bufio.ErrTooLong.
const maxLineSize = 1024 * 1024

// Lines decodes a byte stream into text lines. A nil encoding means the
// bytes are already UTF-8. Line terminators are \n or \r\n and are not
// part of delivered lines.
type Lines struct {
	scanner *bufio.Scanner
	err     error
}

func NewLines(r io.Reader, enc encoding.Encoding) *Lines {
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Lines{scanner: scanner}
}

// Seq returns the finite lazy sequence of lines. Iteration ends at
// end-of-stream, on a read or decode error, or once ctx is done; Err
// tells the difference afterwards. The sequence is single-use in spirit:
// ranging again after an early break resumes with the next unread line,
// which is what the underlying scanner leaves behind.
func (l *Lines) Seq(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for l.scanner.Scan() {
			if ctx.Err() != nil {
				l.err = context.Cause(ctx)
				return
			}
			if !yield(l.scanner.Text()) {
				return
			}
		}
		l.err = l.scanner.Err()
	}
}

// Err reports what ended the iteration: nil on end-of-stream, the
// context cause on cancellation, otherwise the read error.
func (l *Lines) Err() error {
	return l.err
}
