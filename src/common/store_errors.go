package common

import "fmt"

// StoreErrType ...
type StoreErrType uint32

const (
	// Unavailable means the backing storage failed.
	Unavailable StoreErrType = iota
	// Closed means the store was used after Close.
	Closed
)

// StoreErr is returned by stores when they cannot answer, as opposed to
// answering no.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
	cause    error
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string, cause error) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
		cause:    cause,
	}
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case Unavailable:
		m = "Unavailable"
	case Closed:
		m = "Closed"
	}

	if e.cause != nil {
		return fmt.Sprintf("%s, %s, %s: %v", e.dataType, e.key, m, e.cause)
	}
	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// Unwrap returns the underlying storage error, if any.
func (e StoreErr) Unwrap() error {
	return e.cause
}

// IsStore checks that an error is of type StoreErr and that it's code matches
// the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
