// Package operator generates executable operators from plan nodes.
//
// Generation happens once per plan and fails fast: unknown tags, malformed
// parameters, a missing graph backend and backend preparation failures all
// surface as a *GenError before any record is processed. Per-record failures
// surface as an *ExecError from Apply or from the returned sequence.
package operator

import (
	"errors"
	"fmt"
	"iter"
)

var (
	ErrNullGraph      = errors.New("no graph backend registered")
	ErrTagNotFound    = errors.New("tag not found in record")
	ErrUnexpectedData = errors.New("unexpected data")
)

// GenErrorKind classifies generation failures.
type GenErrorKind uint8

const (
	GenTagResolution GenErrorKind = iota + 1
	GenPlanDecode
	GenNullGraph
	GenBackendPrepare
)

func (k GenErrorKind) String() string {
	switch k {
	case GenTagResolution:
		return "tag_resolution"
	case GenPlanDecode:
		return "plan_decode"
	case GenNullGraph:
		return "null_graph"
	case GenBackendPrepare:
		return "backend_prepare"
	default:
		return "unknown"
	}
}

// GenError is returned when an operator cannot be generated from a plan node.
type GenError struct {
	Kind GenErrorKind
	Msg  string
	Err  error
}

func (e *GenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generate operator: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("generate operator: %s: %s: %v", e.Kind, e.Msg, e.Err)
}

func (e *GenError) Unwrap() error { return e.Err }

// ErrorKind labels the error in metrics.
func (e *GenError) ErrorKind() string { return "gen_" + e.Kind.String() }

func genError(kind GenErrorKind, msg string, err error) *GenError {
	return &GenError{Kind: kind, Msg: msg, Err: err}
}

// ExecErrorKind classifies per-record failures.
type ExecErrorKind uint8

const (
	ExecGetTag ExecErrorKind = iota + 1
	ExecUnexpectedData
	ExecBackend
)

func (k ExecErrorKind) String() string {
	switch k {
	case ExecGetTag:
		return "get_tag"
	case ExecUnexpectedData:
		return "unexpected_data"
	case ExecBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// ExecError is returned when a record cannot be processed.
type ExecError struct {
	Kind ExecErrorKind
	Msg  string
	Err  error
}

func (e *ExecError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("execute operator: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("execute operator: %s: %s: %v", e.Kind, e.Msg, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ErrorKind labels the error in metrics.
func (e *ExecError) ErrorKind() string { return "exec_" + e.Kind.String() }

func getTagError(msg string) *ExecError {
	return &ExecError{Kind: ExecGetTag, Msg: msg, Err: ErrTagNotFound}
}

func unexpectedDataError(msg string, err error) *ExecError {
	if err == nil {
		err = ErrUnexpectedData
	} else {
		err = fmt.Errorf("%w: %w", ErrUnexpectedData, err)
	}
	return &ExecError{Kind: ExecUnexpectedData, Msg: msg, Err: err}
}

func backendError(msg string, err error) *ExecError {
	return &ExecError{Kind: ExecBackend, Msg: msg, Err: err}
}

// backendSeq wraps errors yielded by a backend sequence as ExecBackend errors.
func backendSeq[T any](msg string, seq iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range seq {
			if err != nil {
				yield(v, backendError(msg, err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
