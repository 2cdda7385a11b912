package invoke

import "io"

// Input selects where the child's stdin comes from. The set is closed:
// FromBytes, FromFile, FromReader and FromWriter. A nil Input wires the
// null device, the child observes immediate end-of-input.
type Input interface {
	input()
}

// FromBytes feeds a fixed buffer into the child's stdin, then closes it.
type FromBytes struct {
	Data []byte
}

// FromString is a convenience for feeding a fixed string.
func FromString(s string) FromBytes {
	return FromBytes{Data: []byte(s)}
}

// FromFile redirects stdin from a file at the descriptor level.
type FromFile struct {
	Path string
}

// FromReader copies an existing byte stream into the child's stdin and
// closes stdin once the stream ends. The reader itself is not closed.
type FromReader struct {
	R io.Reader
}

// WriteFunc writes a child's stdin. The session closes the handle on
// every return path, panics included, so the child always observes
// end-of-input.
type WriteFunc func(w io.Writer) error

// FromWriter hands the child's stdin to a caller callback which is fully
// responsible for writing it.
type FromWriter struct {
	Write WriteFunc
}

func (FromBytes) input()  {}
func (FromFile) input()   {}
func (FromReader) input() {}
func (FromWriter) input() {}
