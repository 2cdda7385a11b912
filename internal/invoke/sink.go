package invoke

import (
	"context"
	"iter"
)

// Sink selects the destination of one output stream. The set is closed:
// Discard, Inherit, Capture, ToFile and Consume. A nil Sink means
// Inherit.
type Sink interface {
	sink()
}

// Discard throws the stream away (null device).
type Discard struct{}

// Inherit wires the stream to the parent's corresponding stream.
type Inherit struct{}

// Capture accumulates the stream's lines into Result.Output. When both
// stdout and stderr use Capture, the child's stderr is merged into its
// stdout at the OS level and Result.Output holds the true chronological
// interleaving of both streams.
type Capture struct{}

// ToFile redirects the stream to a file at the descriptor level: no
// decoding, no pump, child bytes land in the file exactly as produced.
// Append false truncates an existing file.
type ToFile struct {
	Path   string
	Append bool
}

// ConsumeFunc receives the lazy line sequence of one stream and owns its
// iteration. It runs on the pump goroutine of its stream; when stdout
// and stderr both use Consume with a shared function, that function must
// be safe for concurrent use.
type ConsumeFunc func(ctx context.Context, lines iter.Seq[string]) error

// Consume streams lines directly to Handler. Nothing is retained and the
// lines never appear in Result.Output.
type Consume struct {
	Handler ConsumeFunc
}

func (Discard) sink() {}
func (Inherit) sink() {}
func (Capture) sink() {}
func (ToFile) sink()  {}
func (Consume) sink() {}
