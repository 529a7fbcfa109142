package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRequest matches every failure that happened on the client side before or
// after the round trip (bad URL, encoding, decoding).
var ErrRequest = errors.New("request failed")

// ResponseError means the server answered with a non-2xx status.
type ResponseError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server responded %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: server responded %d: %s", e.Op, e.StatusCode, e.Body)
}

// NetworkError means the request was sent but no response came back
// (refused connection, reset, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: no response: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// RequestError covers anything else that went wrong in the client.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string        { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *RequestError) Unwrap() error        { return e.Err }
func (e *RequestError) Is(target error) bool { return target == ErrRequest }

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// Kind names the failure class of err for logging.
func Kind(err error) string {
	var (
		re *ResponseError
		ne *NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &re):
		return "server"
	case errors.As(err, &ne):
		return "network"
	default:
		return "other"
	}
}
