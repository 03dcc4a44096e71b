package operation

import (
	"context"
	"fmt"
	"io"
	"iter"

	"golang.org/x/time/rate"

	"github.com/BaSui01/cancelable/types"
)

// Stream is a pull-based lazy sequence. Next returns io.EOF when the stream
// is exhausted. Streams are single-consumer: Next must not be called
// concurrently.
type Stream[T any] struct {
	next func(ctx context.Context) (T, error)
}

// NewStream creates a stream from an iterator function.
func NewStream[T any](next func(ctx context.Context) (T, error)) *Stream[T] {
	return &Stream[T]{next: next}
}

// Next returns the next element, io.EOF at the end.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	return s.next(ctx)
}

// FromSlice creates a stream over the given elements.
func FromSlice[T any](items []T) *Stream[T] {
	idx := 0
	return NewStream(func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, context.Cause(ctx)
		}
		if idx >= len(items) {
			return zero, io.EOF
		}
		val := items[idx]
		idx++
		return val, nil
	})
}

// FromChannel creates a stream draining ch; the stream ends when ch closes.
func FromChannel[T any](ch <-chan T) *Stream[T] {
	return NewStream(func(ctx context.Context) (T, error) {
		var zero T
		select {
		case <-ctx.Done():
			return zero, context.Cause(ctx)
		case val, ok := <-ch:
			if !ok {
				return zero, io.EOF
			}
			return val, nil
		}
	})
}

// FromSeq creates a stream over an iter.Seq.
func FromSeq[T any](seq iter.Seq[T]) *Stream[T] {
	next, stop := iter.Pull(seq)
	return NewStream(func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			stop()
			return zero, context.Cause(ctx)
		}
		val, ok := next()
		if !ok {
			stop()
			return zero, io.EOF
		}
		return val, nil
	})
}

// Collect drains the stream into a slice.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	var out []T
	for {
		val, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, val)
	}
}

// DefaultPartialBufferCap bounds the partial-result buffer.
const DefaultPartialBufferCap = 1000

// StreamOption configures Guard and GuardChunks.
type StreamOption func(*streamConfig)

type streamConfig struct {
	reportInterval int
	buffer         bool
	bufferCap      int
	limiter        *rate.Limiter
}

// WithReportInterval emits a progress report every n elements.
func WithReportInterval(n int) StreamOption {
	return func(c *streamConfig) {
		if n > 0 {
			c.reportInterval = n
		}
	}
}

// WithPartialBuffer buffers emitted elements into the operation's partial
// result so they survive cancellation.
func WithPartialBuffer() StreamOption {
	return func(c *streamConfig) { c.buffer = true }
}

// WithPartialBufferCap overrides the partial-result buffer bound.
func WithPartialBufferCap(n int) StreamOption {
	return func(c *streamConfig) {
		if n > 0 {
			c.bufferCap = n
		}
	}
}

// WithReportLimit rate-limits progress reports emitted by the stream.
func WithReportLimit(limit rate.Limit) StreamOption {
	return func(c *streamConfig) { c.limiter = rate.NewLimiter(limit, 1) }
}

// Guard wraps s with the operation's cancellation machinery: the token is
// checked before every pull, elements are optionally buffered into the
// partial result, and a progress report is emitted every report-interval
// elements with the running count. Elements are yielded in source order.
//
// The partial result is owned by the stream until the operation exits; read
// it through the operation context afterwards.
func Guard[T any](op *Operation, s *Stream[T], opts ...StreamOption) *Stream[T] {
	cfg := streamConfig{bufferCap: DefaultPartialBufferCap}
	for _, opt := range opts {
		opt(&cfg)
	}

	count := 0
	var pr *types.PartialResult
	if cfg.buffer {
		pr = &types.PartialResult{}
		op.octx.SetPartialResult(pr)
	}
	finish := func(completed bool) {
		if pr != nil {
			pr.Completed = completed
		}
	}

	return NewStream(func(ctx context.Context) (T, error) {
		var zero T
		if err := op.tok.Check(); err != nil {
			finish(false)
			return zero, err
		}

		val, err := s.Next(ctx)
		if err == io.EOF {
			finish(true)
			return zero, io.EOF
		}
		if err != nil {
			finish(false)
			return zero, err
		}

		count++
		if pr != nil {
			pr.Count = count
			pr.Buffer = append(pr.Buffer, val)
			if len(pr.Buffer) > cfg.bufferCap {
				pr.Buffer = pr.Buffer[len(pr.Buffer)-cfg.bufferCap:]
			}
		}

		if cfg.reportInterval > 0 && count%cfg.reportInterval == 0 {
			if cfg.limiter == nil || cfg.limiter.Allow() {
				perr := op.ReportProgress(ctx,
					fmt.Sprintf("processed %d items", count),
					map[string]any{"count": count, "current": count})
				if perr != nil {
					finish(false)
					return zero, perr
				}
			}
		}
		return val, nil
	})
}

// GuardChunks wraps s into chunks of up to size elements, checking the token
// between chunks rather than between individual elements. Useful when
// per-element cost is small. Of the stream options only WithReportInterval
// applies (counting chunks); partial buffering and report limits are not
// applied to chunked streams.
func GuardChunks[T any](op *Operation, s *Stream[T], size int, opts ...StreamOption) *Stream[[]T] {
	if size <= 0 {
		size = 1
	}
	cfg := streamConfig{bufferCap: DefaultPartialBufferCap}
	for _, opt := range opts {
		opt(&cfg)
	}

	chunks := 0
	return NewStream(func(ctx context.Context) ([]T, error) {
		if err := op.tok.Check(); err != nil {
			return nil, err
		}

		chunk := make([]T, 0, size)
		for len(chunk) < size {
			val, err := s.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			chunk = append(chunk, val)
		}
		if len(chunk) == 0 {
			return nil, io.EOF
		}

		chunks++
		if cfg.reportInterval > 0 && chunks%cfg.reportInterval == 0 {
			perr := op.ReportProgress(ctx,
				fmt.Sprintf("processed %d chunks", chunks),
				map[string]any{"count": chunks})
			if perr != nil {
				return nil, perr
			}
		}
		return chunk, nil
	})
}
