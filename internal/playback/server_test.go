package playback

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServeFile_Full(t *testing.T) {
	path := writeTestFile(t, "cap.jpg", "0123456789")
	srv := NewServer(testLogger())

	req := httptest.NewRequest("GET", "/media/file", nil)
	rec := httptest.NewRecorder()

	if err := srv.ServeFile(rec, req, path); err != nil {
		t.Fatalf("ServeFile: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "0123456789" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("missing Accept-Ranges header")
	}
}

func TestServeFile_Range(t *testing.T) {
	path := writeTestFile(t, "clip.mp4", "0123456789")
	srv := NewServer(testLogger())

	req := httptest.NewRequest("GET", "/media/file", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	if err := srv.ServeFile(rec, req, path); err != nil {
		t.Fatalf("ServeFile: %v", err)
	}

	if rec.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", rec.Code)
	}
	if got := rec.Body.String(); got != "2345" {
		t.Errorf("body = %q, want 2345", got)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", cr)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}
}

func TestServeFile_UnsatisfiableRange(t *testing.T) {
	path := writeTestFile(t, "cap.jpg", "0123456789")
	srv := NewServer(testLogger())

	req := httptest.NewRequest("GET", "/media/file", nil)
	req.Header.Set("Range", "bytes=100-200")
	rec := httptest.NewRecorder()

	if err := srv.ServeFile(rec, req, path); err != nil {
		t.Fatalf("ServeFile: %v", err)
	}

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want 416", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes */10" {
		t.Errorf("Content-Range = %q", cr)
	}
}

func TestServeFile_Missing(t *testing.T) {
	srv := NewServer(testLogger())

	req := httptest.NewRequest("GET", "/media/file", nil)
	rec := httptest.NewRecorder()

	if err := srv.ServeFile(rec, req, filepath.Join(t.TempDir(), "gone.jpg")); err != nil {
		t.Fatalf("ServeFile: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// brokenWriter fails every body write, the way a closed UI connection does.
type brokenWriter struct {
	header http.Header
	status int
}

func (w *brokenWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *brokenWriter) WriteHeader(status int) { w.status = status }

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestServeFile_LogsInterruptedStream(t *testing.T) {
	path := writeTestFile(t, "clip.mp4", "0123456789")

	var buf bytes.Buffer
	srv := NewServer(slog.New(slog.NewTextHandler(&buf, nil)))

	req := httptest.NewRequest("GET", "/media/file", nil)
	req.Header.Set("Range", "bytes=2-5")

	if err := srv.ServeFile(&brokenWriter{}, req, path); err != nil {
		t.Fatalf("ServeFile: %v", err)
	}
	if !strings.Contains(buf.String(), "media stream interrupted") {
		t.Errorf("log output missing stream warning: %q", buf.String())
	}

	buf.Reset()
	req = httptest.NewRequest("GET", "/media/file", nil)
	if err := srv.ServeFile(&brokenWriter{}, req, path); err != nil {
		t.Fatalf("ServeFile: %v", err)
	}
	if !strings.Contains(buf.String(), "media stream interrupted") {
		t.Errorf("log output missing stream warning: %q", buf.String())
	}
}
