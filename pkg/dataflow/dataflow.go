// Package dataflow is the minimal operator runtime nornicflow stages run on.
//
// A stage is a FlatMapFunction: one record in, a lazy sequence of records
// out. Chain composes stages depth-first, so a record travels through every
// stage before the next input is pulled, and memory stays bounded by the
// number of stages rather than the size of intermediate results.
package dataflow

import (
	"context"
	"errors"
	"iter"

	"github.com/orneryd/nornicflow/pkg/metrics"
	"github.com/orneryd/nornicflow/pkg/record"
)

// FlatMapFunction turns one record into zero or more records.
//
// An error returned by Apply, or yielded by the sequence, ends processing.
// Implementations must be safe for concurrent use.
type FlatMapFunction interface {
	Apply(ctx context.Context, input record.Record) (iter.Seq2[record.Record, error], error)
}

// FlatMapFunc adapts a function to FlatMapFunction.
type FlatMapFunc func(ctx context.Context, input record.Record) (iter.Seq2[record.Record, error], error)

func (f FlatMapFunc) Apply(ctx context.Context, input record.Record) (iter.Seq2[record.Record, error], error) {
	return f(ctx, input)
}

// MapFunction turns one record into exactly one record.
type MapFunction interface {
	Map(ctx context.Context, input record.Record) (record.Record, error)
}

// MapFunc adapts a function to MapFunction.
type MapFunc func(ctx context.Context, input record.Record) (record.Record, error)

func (f MapFunc) Map(ctx context.Context, input record.Record) (record.Record, error) {
	return f(ctx, input)
}

// FromMap lifts a MapFunction into a single-output stage.
func FromMap(fn MapFunction) FlatMapFunction {
	return FlatMapFunc(func(ctx context.Context, input record.Record) (iter.Seq2[record.Record, error], error) {
		out, err := fn.Map(ctx, input)
		if err != nil {
			return nil, err
		}
		return func(yield func(record.Record, error) bool) {
			yield(out, nil)
		}, nil
	})
}

// Source yields records in order.
func Source(records ...record.Record) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Chain pipes input through stages. The first error, from input or any
// stage, is yielded last. Nothing runs until the result is ranged over.
func Chain(ctx context.Context, input iter.Seq2[record.Record, error], stages ...FlatMapFunction) iter.Seq2[record.Record, error] {
	out := input
	for _, stage := range stages {
		out = flatMap(ctx, out, stage)
	}
	return out
}

func flatMap(ctx context.Context, input iter.Seq2[record.Record, error], fn FlatMapFunction) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		for in, err := range input {
			if err != nil {
				yield(record.Record{}, err)
				return
			}
			if err := ctx.Err(); err != nil {
				countError(err)
				yield(record.Record{}, err)
				return
			}

			metrics.RecordsIn.Inc()
			outs, err := fn.Apply(ctx, in)
			if err != nil {
				countError(err)
				yield(record.Record{}, err)
				return
			}
			for out, err := range outs {
				if err != nil {
					countError(err)
					yield(record.Record{}, err)
					return
				}
				metrics.RecordsOut.Inc()
				if !yield(out, nil) {
					return
				}
			}
		}
	}
}

// Collect drains seq.
func Collect(seq iter.Seq2[record.Record, error]) ([]record.Record, error) {
	var out []record.Record
	for r, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Take stops seq after n records.
func Take(seq iter.Seq2[record.Record, error], n int) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		if n <= 0 {
			return
		}
		taken := 0
		for r, err := range seq {
			if !yield(r, err) || err != nil {
				return
			}
			taken++
			if taken >= n {
				return
			}
		}
	}
}

// countError labels errors by their ErrorKind method when they have one.
func countError(err error) {
	kind := "other"
	var k interface{ ErrorKind() string }
	switch {
	case errors.As(err, &k):
		kind = k.ErrorKind()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = "canceled"
	}
	metrics.ErrorsTotal.WithLabelValues(kind).Inc()
}
