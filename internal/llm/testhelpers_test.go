package llm

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// fakeProvider is an httptest server that records the last request and
// replies with a fixed status and body.
type fakeProvider struct {
	*httptest.Server
	calls    atomic.Int32
	lastBody string
	lastAuth string
	lastPath string
}

func newFakeProvider(t *testing.T, status int, body string) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	fp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.calls.Add(1)
		data, _ := io.ReadAll(r.Body)
		fp.lastBody = string(data)
		fp.lastAuth = r.Header.Get("Authorization")
		fp.lastPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fp.Close)
	return fp
}

var testImage = &Image{Data: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, MIMEType: "image/png"}

// testImageURI is testImage.DataURI() spelled out.
const testImageURI = "data:image/png;base64,iVBORw0KGgo="
