package inbound

import (
	"fmt"
	"net/http"

	"github.com/goliatone/go-crm-items/core"
	goerrors "github.com/goliatone/go-errors"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func methodNotAllowed(method string) *goerrors.Error {
	return inboundError(
		fmt.Sprintf("inbound: method %s not allowed", method),
		goerrors.CategoryBadInput,
		http.StatusMethodNotAllowed,
		core.ServiceErrorBadInput,
		map[string]any{"method": method},
	)
}

func inboundInternal(message string) *goerrors.Error {
	return inboundError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.ServiceErrorInternal,
		nil,
	)
}

// errorBody is the JSON envelope written for failed callbacks.
type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Category string         `json:"category"`
	Code     int            `json:"code"`
	TextCode string         `json:"text_code"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func newErrorBody(err *goerrors.Error) errorBody {
	payload := errorPayload{
		Category: fmt.Sprint(err.Category),
		Code:     err.Code,
		TextCode: err.TextCode,
		Message:  err.Message,
	}
	if len(err.Metadata) > 0 {
		payload.Metadata = core.RedactSensitiveMap(err.Metadata)
	}
	return errorBody{Error: payload}
}
