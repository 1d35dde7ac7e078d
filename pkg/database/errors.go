package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/lib/pq"
)

type ErrorClass string

const (
	ErrorClassUnknown    ErrorClass = "unknown"
	ErrorClassConstraint ErrorClass = "constraint"
	ErrorClassTransient  ErrorClass = "transient"
)

// Classify sorts a driver error into constraint violations, transient
// connection or timeout failures, and everything else.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return ErrorClassTransient
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "23":
			return ErrorClassConstraint
		case pqErr.Code.Class() == "08", // connection exception
			pqErr.Code.Class() == "53", // insufficient resources
			pqErr.Code == "57014",      // query_canceled (statement timeout)
			pqErr.Code == "40001",      // serialization_failure
			pqErr.Code == "40P01":      // deadlock_detected
			return ErrorClassTransient
		}
		return ErrorClassUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassTransient
	}

	if strings.Contains(err.Error(), "connection refused") {
		return ErrorClassTransient
	}

	return ErrorClassUnknown
}

// QueryError is returned by repositories so callers can still classify the driver error.
type QueryError struct {
	Op    string
	Class ErrorClass
	Err   error
}

// WrapQueryError tags err with the failed operation, e.g. "insert roster records".
func WrapQueryError(err error, op string) error {
	if err == nil {
		return nil
	}
	return &QueryError{Op: op, Class: Classify(err), Err: err}
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) StatusCode() int {
	if e.Class == ErrorClassTransient {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ToHTTPError hides the driver message from clients.
func (e *QueryError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.StatusCode(), fmt.Sprintf("failed to %s", e.Op)).AddMetaValue("error_class", string(e.Class))
}

func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
