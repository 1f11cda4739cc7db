package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loykin/timewarden/internal/backend"
	"github.com/loykin/timewarden/internal/store"
)

// Reply envelopes. Exactly one of result or error is present on /invoke.
type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type resultResp struct {
	Result any `json:"result"`
}

// argError marks a request whose arguments could not be decoded.
type argError struct{ err error }

func (e argError) Error() string { return "invalid arguments: " + e.err.Error() }
func (e argError) Unwrap() error { return e.err }

// decode unmarshals the call arguments. An empty body yields the zero value.
func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, argError{err}
	}
	return v, nil
}

func statusOf(err error) int {
	var ae argError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ae), errors.Is(err, backend.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// normalizeBase turns a configured base path into "" or "/a/b".
func normalizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" {
		return ""
	}
	bp = path.Clean("/" + bp)
	if bp == "/" {
		return ""
	}
	return bp
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}

func writeError(c *gin.Context, code int, err error) {
	writeJSON(c, code, errorResp{Error: err.Error()})
}
