package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/script/parser"
)

// Error codes carried in every non-2xx body. Clients switch on the code;
// the HTTP status follows from it.
const (
	CodeInvalidBody     = "invalid_body"
	CodeInvalidEntity   = "invalid_entity"
	CodeMissingField    = "missing_field"
	CodeUnauthenticated = "unauthenticated"
	CodeEntityNotFound  = "entity_not_found"
	CodeServiceNotFound = "service_not_found"
	CodeServiceFailed   = "service_failed"
	CodeSyntaxError     = "syntax_error"
	CodeScriptError     = "script_error"
	CodeEvalTimeout     = "eval_timeout"
	CodeReloadFailed    = "reload_failed"
	CodeInternal        = "internal_error"
)

var codeStatus = map[string]int{
	CodeInvalidBody:     http.StatusBadRequest,
	CodeInvalidEntity:   http.StatusBadRequest,
	CodeMissingField:    http.StatusBadRequest,
	CodeUnauthenticated: http.StatusUnauthorized,
	CodeEntityNotFound:  http.StatusNotFound,
	CodeServiceNotFound: http.StatusNotFound,
	CodeServiceFailed:   http.StatusBadGateway,
	CodeSyntaxError:     http.StatusUnprocessableEntity,
	CodeScriptError:     http.StatusUnprocessableEntity,
	CodeEvalTimeout:     http.StatusUnprocessableEntity,
	CodeReloadFailed:    http.StatusInternalServerError,
	CodeInternal:        http.StatusInternalServerError,
}

// Error is the body of every failed request. Kind, Line and Column are set
// only for script failures.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func newError(code, format string, args ...any) Error {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// scriptError describes a parse or evaluation failure with its position.
func scriptError(err error) Error {
	var perr *parser.Error
	if errors.As(err, &perr) {
		e := newError(CodeSyntaxError, "%s", perr.Error())
		e.Kind, e.Line, e.Column = perr.Kind(), perr.Line, perr.Col
		return e
	}
	e := newError(CodeScriptError, "%s", err.Error())
	var eerr *eval.Error
	if errors.As(err, &eerr) {
		e.Kind = eerr.Kind
		if eerr.Located() {
			e.Line, e.Column = eerr.Line, eerr.Col
		}
	}
	return e
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, e Error) {
	writeJSON(w, e.Status, e)
}

// fail writes the error for code with a formatted message.
func fail(w http.ResponseWriter, code, format string, args ...any) {
	writeError(w, newError(code, format, args...))
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
