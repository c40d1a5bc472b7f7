package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoBody(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write(data)
	})
}

func TestBodyLimit(t *testing.T) {
	handler := BodyLimit{Max: 32}.Middleware(echoBody(t))

	cases := []struct {
		name        string
		body        string
		contentType string
		unknownLen  bool
		status      int
		code        string
	}{
		{name: "toggle payload", body: `{"option_id":"190hp"}`, contentType: "application/json; charset=utf-8", status: http.StatusOK},
		{name: "empty reset", body: "", status: http.StatusOK},
		{name: "declared too large", body: strings.Repeat("x", 33), contentType: "application/json", status: http.StatusRequestEntityTooLarge, code: "PAYLOAD_TOO_LARGE"},
		{name: "streamed too large", body: `{"country":"` + strings.Repeat("x", 40) + `"}`, contentType: "application/json", unknownLen: true, status: http.StatusRequestEntityTooLarge, code: "PAYLOAD_TOO_LARGE"},
		{name: "form post", body: "option_id=190hp", contentType: "application/x-www-form-urlencoded", status: http.StatusUnsupportedMediaType, code: "UNSUPPORTED_MEDIA_TYPE"},
		{name: "missing content type", body: `{"option_id":"pro"}`, status: http.StatusUnsupportedMediaType, code: "UNSUPPORTED_MEDIA_TYPE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/toggle", strings.NewReader(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			if tc.unknownLen {
				req.ContentLength = -1
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			if tc.code != "" {
				require.Contains(t, rr.Body.String(), tc.code)
				return
			}
			require.Equal(t, tc.body, rr.Body.String())
		})
	}
}

func TestBodyLimitDisabled(t *testing.T) {
	handler := BodyLimit{}.Middleware(echoBody(t))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain text"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "plain text", rr.Body.String())
}
