package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"echo":` + string(body) + `}`))
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		compressRequest bool
		acceptGzip      bool
	}{
		{name: "plain in, gzip out", body: `{"delta":500}`, acceptGzip: true},
		{name: "plain in, plain out", body: `{"delta":-100}`},
		{name: "gzip in, gzip out", body: `{"channel":"@sponsor"}`, compressRequest: true, acceptGzip: true},
		{name: "gzip in, plain out", body: `{"channel":"@other"}`, compressRequest: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.body)
			if tt.compressRequest {
				body = bytes.NewReader(gzipBytes(t, tt.body))
			}

			req := httptest.NewRequest(http.MethodPost, "/api/admin/users/1/balance", body)
			if tt.compressRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

			var reader io.Reader = res.Body
			if tt.acceptGzip {
				require.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
				gr, err := gzip.NewReader(res.Body)
				require.NoError(t, err)
				defer gr.Close()
				reader = gr
			} else {
				assert.Empty(t, res.Header.Get("Content-Encoding"))
			}

			got, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.JSONEq(t, `{"echo":`+tt.body+`}`, string(got))
		})
	}
}

func TestGzipMiddleware_BrokenRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
