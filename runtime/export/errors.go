package export

import (
	"context"
	"fmt"

	"github.com/stellify/stellify/core/recordfmt"
)

// UnitError reports a unit that could not be lowered. The rest of the batch
// is unaffected.
type UnitError struct {
	Path string
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("Error parsing %s: %v", e.Path, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// Sink persists an exported bundle.
type Sink interface {
	Write(ctx context.Context, b *recordfmt.Bundle) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, b *recordfmt.Bundle) error

func (f SinkFunc) Write(ctx context.Context, b *recordfmt.Bundle) error { return f(ctx, b) }

// Tee returns a sink writing to each of sinks in turn, stopping at the
// first failure.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, b *recordfmt.Bundle) error {
		for _, s := range sinks {
			if err := s.Write(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
}
