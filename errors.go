package bucketcache

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailure matches every *ConnectionError via errors.Is.
	ErrConnectionFailure = errors.New("bucketcache: connection failure")
	// ErrStoreOperation matches every *OperationError via errors.Is.
	ErrStoreOperation = errors.New("bucketcache: store operation failed")

	ErrGatewayClosed = errors.New("bucketcache: gateway closed")
	ErrBucketClosed  = errors.New("bucketcache: bucket closed")
	ErrNilGateway    = errors.New("bucketcache: gateway is required")
	ErrNameRequired  = errors.New("bucketcache: bucket name is required")
)

// ConnectionError is returned when a connection could not be established or
// repaired (resolve, dial, or open handshake). Err is the underlying cause.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("bucketcache: connection failed: %v", e.Err)
	}
	return fmt.Sprintf("bucketcache: connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailure }

// OperationError is returned when a request reached the store but completed
// with an error (timeout, protocol, or server-side error).
type OperationError struct {
	Op  string
	Key string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("bucketcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool { return target == ErrStoreOperation }

func opErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectionFailure) || errors.Is(err, ErrStoreOperation) {
		return err
	}
	return &OperationError{Op: op, Key: key, Err: err}
}
