// Package cmderr defines the closed set of failure kinds surfaced by
// davbridge commands. Every propagated error carries a stable machine
// code for programmatic handling and a free-text detail for display.
package cmderr

import "fmt"

// Code is the machine-readable discriminant of an Error. Codes are part
// of the API contract and must not change between releases.
type Code string

const (
	CodeSidecarAlreadyRunning Code = "SIDECAR_ALREADY_RUNNING"
	CodeSidecarNotRunning     Code = "SIDECAR_NOT_RUNNING"
	CodeSidecarSpawnFailed    Code = "SIDECAR_SPAWN_FAILED"
	CodeSidecarCommandFailed  Code = "SIDECAR_COMMAND_FAILED"
	CodeInvalidPort           Code = "INVALID_PORT"
	CodePortInUse             Code = "PORT_IN_USE"
	CodeInvalidEmail          Code = "INVALID_EMAIL"
	CodeAuthFailed            Code = "AUTH_FAILED"
	CodeServerInitTimeout     Code = "SERVER_INIT_TIMEOUT"
	CodeMountTimeout          Code = "MOUNT_TIMEOUT"
	CodeServerNotRunning      Code = "SERVER_NOT_RUNNING"
	CodeGioError              Code = "GIO_ERROR"
	CodeIoError               Code = "IO_ERROR"
	CodeUnknown               Code = "UNKNOWN"
)

// messages maps each code to its human-readable summary, distinct from
// the machine code itself.
var messages = map[Code]string{
	CodeSidecarAlreadyRunning: "sidecar already running",
	CodeSidecarNotRunning:     "sidecar not running",
	CodeSidecarSpawnFailed:    "failed to spawn sidecar",
	CodeSidecarCommandFailed:  "sidecar command failed",
	CodeInvalidPort:           "invalid port",
	CodePortInUse:             "port already in use",
	CodeInvalidEmail:          "invalid email address",
	CodeAuthFailed:            "authentication failed",
	CodeServerInitTimeout:     "server did not initialize in time",
	CodeMountTimeout:          "mount operation timed out",
	CodeServerNotRunning:      "server not running",
	CodeGioError:              "gio operation failed",
	CodeIoError:               "i/o error",
	CodeUnknown:               "unknown error",
}

// Error is a typed command failure. Detail is optional diagnostic text.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	msg, ok := messages[e.Code]
	if !ok {
		msg = messages[CodeUnknown]
	}
	if e.Detail == "" {
		return msg
	}
	return msg + ": " + e.Detail
}

// Is makes errors.Is(err, cmderr.New(code, "")) match on code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New returns a typed error with the given code and optional detail.
func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// Newf is New with a formatted detail string.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap converts err into a typed error with the given code, preserving
// err's text as detail. A nil err returns nil; an existing *Error is
// returned unchanged so codes assigned close to the failure win.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	if terr, ok := err.(*Error); ok {
		return terr
	}
	return &Error{Code: code, Detail: err.Error()}
}

// CodeOf extracts the machine code from err, or CodeUnknown for
// untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if terr, ok := err.(*Error); ok {
		return terr.Code
	}
	return CodeUnknown
}
