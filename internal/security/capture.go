package security

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/noah-isme/taxbridge/internal/common"
)

type bodyKey struct{}

// BodyCapture buffers request bodies up to Max bytes and keeps the raw bytes
// on the request context, where calculations read them as the originating
// request body.
type BodyCapture struct {
	Max int64
}

// Middleware rejects bodies over the limit with 413 and replays the buffered
// body to next.
func (b BodyCapture) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if b.Max > 0 && r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, common.CodeInvalidRequest, "request entity too large", nil)
			return
		}

		reader := io.Reader(r.Body)
		if b.Max > 0 {
			reader = io.LimitReader(r.Body, b.Max+1)
		}
		buf, err := io.ReadAll(reader)
		if err != nil && !errors.Is(err, io.EOF) {
			common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "invalid request body", nil)
			return
		}
		if b.Max > 0 && int64(len(buf)) > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, common.CodeInvalidRequest, "request entity too large", nil)
			return
		}
		_ = r.Body.Close()

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r.WithContext(WithBody(r.Context(), buf)))
	})
}

// WithBody stores a captured body on ctx.
func WithBody(ctx context.Context, body []byte) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

// Body returns the body captured for the current request.
func Body(ctx context.Context) ([]byte, bool) {
	b, ok := ctx.Value(bodyKey{}).([]byte)
	return b, ok
}
