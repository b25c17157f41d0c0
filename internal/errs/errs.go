// Package errs defines the coded error taxonomy shared by the core and its
// plugins. Codes are dot-separated; the last segment is the reason.
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeNoHandler             Code = "entity.no_handler"
	CodeHandlerPanic          Code = "entity.handler.panic"
	CodeHandlerFailure        Code = "entity.handler.failure"
	CodeDispatchVetoed        Code = "entity.dispatch.cancelled"
	CodeHookCallbackPanic     Code = "hook.callback.panic"
	CodeDuplicateRegistration Code = "registration.duplicate"
	CodeStaleReference        Code = "plugin.stale_reference"
	CodePluginNotFound        Code = "plugin.not_found"
	CodeCapabilityInvalid     Code = "plugin.capability.invalid"
	CodePluginInitFailure     Code = "plugin.init.failure"
	CodeLifecycleInvalid      Code = "core.lifecycle.invalid"
	CodeIDPoolExhausted       Code = "core.id_pool.exhausted"
	CodeIDNotReserved         Code = "core.id.not_reserved"
	CodeLoopStopped           Code = "core.loop.stopped"
	CodeRequestCancelled      Code = "network.request.cancelled"
	CodeConfigInvalid         Code = "config.invalid"
	CodeStoreFailure          Code = "store.failure"
	CodeRequestInvalid        Code = "gateway.request.invalid"
	CodeUnauthorized          Code = "gateway.auth.unauthorized"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// FieldPlugin tags an error with a plugin's unique ID.
func FieldPlugin(id string) Attr {
	return Field("plugin", id)
}

// FieldHook tags an error with a hook name.
func FieldHook(name string) Attr {
	return Field("hook", name)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// Recovered converts a recovered panic value into a coded error.
func Recovered(code Code, r any, fields ...Attr) error {
	if err, ok := r.(error); ok {
		return Wrap(err, code, "recovered panic", fields...)
	}
	return New(code, fmt.Sprintf("recovered panic: %v", r), fields...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}
	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// HTTPStatus maps an error to the status the gateway answers with.
func HTTPStatus(err error) int {
	switch reason(CodeOf(err)) {
	case "not_found", "no_handler":
		return http.StatusNotFound
	case "duplicate":
		return http.StatusConflict
	case "invalid":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusUnauthorized
	case "cancelled":
		return http.StatusForbidden
	case "stopped":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
