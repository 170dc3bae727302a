// Package apierror carries HTTP status codes alongside errors so that the
// content API can report them and the page-data client can interpret them.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is an error with an HTTP status code attached.
type Error struct {
	err    error
	status int
}

// ErrorMessage is the JSON body written for a failed API request.
type ErrorMessage struct {
	Message string `json:",omitempty"`
	Status  int    `json:",omitempty"`
}

var internalError = []byte(`{"Message":"Internal Server Error","Status":500}`)

func New(err error, status int) *Error {
	return &Error{
		err:    err,
		status: status,
	}
}

// Newf creates an Error with a formatted message.
func Newf(status int, format string, args ...any) *Error {
	return New(fmt.Errorf(format, args...), status)
}

// FromResponse builds an error from a non-success HTTP response. If the body
// holds an encoded ErrorMessage, its message is used; otherwise the trimmed
// body text is.
func FromResponse(status int, body []byte) error {
	var err error
	text := strings.TrimSpace(string(body))
	if text != "" {
		var em ErrorMessage
		if json.Unmarshal(body, &em) == nil && em.Message != "" {
			text = em.Message
		}
		err = errors.New(text)
	}
	if status == 0 {
		return err
	}
	return New(err, status)
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	if e.status == 0 {
		return ""
	}
	if text := http.StatusText(e.status); text != "" {
		return fmt.Sprintf("%d %s", e.status, text)
	}
	return fmt.Sprintf("%d", e.status)
}

func (e *Error) Status() int {
	return e.status
}

func (e *Error) Unwrap() error {
	return e.err
}

// StatusOf returns the status carried by err, or 500 if err does not carry
// one.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.status != 0 {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func EncodeError(err error) []byte {
	if err == nil {
		return nil
	}

	e := ErrorMessage{
		Message: err.Error(),
	}
	var apierr *Error
	if errors.As(err, &apierr) {
		e.Status = apierr.Status()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return internalError
	}
	return data
}

func DecodeError(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var e ErrorMessage
	err := json.Unmarshal(data, &e)
	if err != nil {
		return fmt.Errorf("cannot decode error message: %s", err)
	}

	err = errors.New(e.Message)
	if e.Status == 0 {
		return err
	}
	return New(err, e.Status)
}

// Write writes err to w as a JSON ErrorMessage using the status from
// StatusOf.
func Write(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	body := EncodeError(err)
	if status == http.StatusInternalServerError {
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			// Do not leak internal error text.
			body = internalError
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
