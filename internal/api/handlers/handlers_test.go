package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/basakesin/mri-defacing-platform/internal/domain/defacer"
	"github.com/basakesin/mri-defacing-platform/internal/domain/pipeline"
)

type okMethod struct{}

func (okMethod) Available() bool { return true }

func (okMethod) Run(_ context.Context, _, output string) error {
	return os.WriteFile(output, []byte("OK"), 0o600)
}

func newDefaceHandler(t *testing.T, maxUpload int64) *DefaceHandler {
	t.Helper()
	reg, err := defacer.NewRegistry(defacer.Descriptor{ID: defacer.MethodPyDeface, Label: "PyDeface", Method: okMethod{}})
	if err != nil {
		t.Fatal(err)
	}
	return NewDefaceHandler(pipeline.NewService(reg, pipeline.WithWorkRoot(t.TempDir())), maxUpload)
}

func multipartBody(t *testing.T, size int) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "scan.nii")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(bytes.Repeat([]byte("v"), size)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func TestDeface_StreamedBodyOverLimit(t *testing.T) {
	t.Parallel()

	h := newDefaceHandler(t, 1024)
	body, ct := multipartBody(t, 8<<10)
	// Hide the length so only the body reader enforces the limit.
	req := httptest.NewRequest(http.MethodPost, "/deface", io.NopCloser(body))
	req.ContentLength = -1
	req.Header.Set("Content-Type", ct)

	rr := httptest.NewRecorder()
	h.Deface(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d; want 413 (%s)", rr.Code, rr.Body.String())
	}
}

func TestDeface_NoLimit(t *testing.T) {
	t.Parallel()

	h := newDefaceHandler(t, 0)
	body, ct := multipartBody(t, 64<<10)
	req := httptest.NewRequest(http.MethodPost, "/deface", body)
	req.Header.Set("Content-Type", ct)

	rr := httptest.NewRecorder()
	h.Deface(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (%s)", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Length") != "2" {
		t.Errorf("Content-Length = %q; want 2", rr.Header().Get("Content-Length"))
	}
}

func TestParseLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  int
	}{
		{"", 0},
		{"?limit=10", 10},
		{"?limit=-3", 0},
		{"?limit=abc", 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/jobs"+tt.query, nil)
		if got := parseLimit(r); got != tt.want {
			t.Errorf("parseLimit(%q) = %d; want %d", tt.query, got, tt.want)
		}
	}
}

func TestWriteError_Shape(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	writeError(rr, http.StatusBadRequest, "unsupported method: x")

	if rr.Code != http.StatusBadRequest || rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("got %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "unsupported method: x" || len(body) != 1 {
		t.Errorf("body = %v", body)
	}
}
