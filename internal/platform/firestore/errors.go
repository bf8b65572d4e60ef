package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrDocumentMissing lets decoders and transaction bodies report an absent
// document when no gRPC status is available, e.g. snap.Exists() == false.
var ErrDocumentMissing = errors.New("firestore: document missing")

type errorKind uint8

const (
	kindOther errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// Error is the repositories.RepositoryError produced by this package.
type Error struct {
	Op   string
	Err  error
	kind errorKind
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsNotFound() bool    { return e != nil && e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

// WrapError classifies err for the service layer. Cancellation, including
// gRPC Canceled and DeadlineExceeded, comes back as the plain context error so
// callers can tell a timed out lock wait from a storage fault. Errors that are
// already classified keep their original operation.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	kind := kindOther
	switch code := status.Code(err); {
	case errors.Is(err, ErrDocumentMissing), code == codes.NotFound:
		kind = kindNotFound
	case code == codes.Canceled:
		return context.Canceled
	case code == codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case code == codes.AlreadyExists, code == codes.FailedPrecondition, code == codes.Aborted:
		kind = kindConflict
	case code == codes.Unavailable, code == codes.ResourceExhausted, code == codes.Internal:
		kind = kindUnavailable
	}
	return &Error{Op: op, Err: err, kind: kind}
}
