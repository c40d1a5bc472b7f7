package security

import (
	"bytes"
	"io"
	"mime"
	"net/http"

	"github.com/noah-isme/camper-configurator/internal/common"
)

// BodyLimit caps request bodies and insists they are JSON. Configurator
// writes carry a single option id or country label, so Max stays small.
type BodyLimit struct {
	Max int64
}

// Middleware buffers the body up to Max so oversized requests fail with 413
// before a handler starts decoding. Empty bodies pass without a content type.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			b.tooLarge(w)
			return
		}

		buf, err := io.ReadAll(io.LimitReader(r.Body, b.Max+1))
		_ = r.Body.Close()
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "invalid request body", nil)
			return
		}
		if int64(len(buf)) > b.Max {
			b.tooLarge(w)
			return
		}
		if len(buf) > 0 && !isJSON(r.Header.Get("Content-Type")) {
			common.JSONError(w, http.StatusUnsupportedMediaType, common.CodeUnsupportedMedia, "request body must be application/json", nil)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func (b BodyLimit) tooLarge(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, common.CodePayloadTooLarge, "request entity too large", map[string]int64{"max_bytes": b.Max})
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json"
}
