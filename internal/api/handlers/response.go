package handlers

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Every response body carries a success flag: DataBody and MsgBody on
// the 2xx side, ErrorBody otherwise. InitErrors installs the error side.

// ErrorBody is the body of every non-2xx response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// apiError implements huma.StatusError so huma serializes ErrorBody as
// the response body instead of its default error model.
type apiError struct {
	status int
	ErrorBody
}

func (e *apiError) Error() string  { return e.ErrorBody.Error }
func (e *apiError) GetStatus() int { return e.status }

// InitErrors replaces huma's error factory with the {success, error}
// envelope. Must run before any operation is registered.
func InitErrors() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		detail := msg
		if len(errs) > 0 {
			parts := make([]string, len(errs))
			for i, e := range errs {
				parts[i] = e.Error()
			}
			detail = msg + ": " + strings.Join(parts, "; ")
		}
		return &apiError{status: status, ErrorBody: ErrorBody{Error: detail}}
	}
}

// DataBody is the success body wrapping a payload.
type DataBody[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type DataOutput[T any] struct {
	Body DataBody[T]
}

func OK[T any](data T) *DataOutput[T] {
	return &DataOutput[T]{Body: DataBody[T]{Success: true, Data: data}}
}

// MsgBody is the success body for operations with no payload.
type MsgBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type MsgOutput struct {
	Body MsgBody
}

func Msg(message string) *MsgOutput {
	return &MsgOutput{Body: MsgBody{Success: true, Message: message}}
}
