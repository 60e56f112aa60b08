package chatclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Describe turns a client error into a short line for the transcript.
func Describe(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "the server took too long to answer"
	case errors.As(err, &statusErr):
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return "the assistant is busy, try again in a moment"
		case http.StatusBadRequest:
			if statusErr.Message != "" {
				return "message rejected: " + statusErr.Message
			}
			return "message rejected"
		}
		return fmt.Sprintf("server error (%d)", statusErr.StatusCode)
	case errors.Is(err, ErrMalformedResponse):
		return "the server sent an unreadable reply"
	case errors.Is(err, ErrTransport):
		return "could not reach the server"
	default:
		return err.Error()
	}
}
