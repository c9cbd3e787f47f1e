package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Errorf(string, ...any) {}

func TestDownloadWritesFile(t *testing.T) {
	payload := []byte("fake zip payload")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Referer"); got != "https://ref.example/" {
			t.Errorf("referer = %q", got)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	trigger := NewFileTrigger(srv.Client(), dir, "https://ref.example/", nopLogger{})

	var lastDone, lastTotal int64
	trigger.OnProgress = func(filename string, done, total int64) {
		lastDone, lastTotal = done, total
	}

	if err := trigger.Download(context.Background(), srv.URL+"/a.zip", "album.zip"); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "album.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("file content = %q", got)
	}

	if lastDone != int64(len(payload)) || lastTotal != int64(len(payload)) {
		t.Errorf("final progress = %d/%d, want %d/%d", lastDone, lastTotal, len(payload), len(payload))
	}
}

func TestDownloadBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	trigger := NewFileTrigger(srv.Client(), dir, "", nopLogger{})

	if err := trigger.Download(context.Background(), srv.URL+"/a.zip", "album.zip"); err == nil {
		t.Fatal("expected an error on HTTP 404")
	}

	if _, err := os.Stat(filepath.Join(dir, "album.zip")); !os.IsNotExist(err) {
		t.Error("no file should be written on a failed status")
	}
}

func TestDownloadRemovesTornFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// promise more bytes than delivered
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	trigger := NewFileTrigger(srv.Client(), dir, "", nopLogger{})

	if err := trigger.Download(context.Background(), srv.URL+"/a.zip", "album.zip"); err == nil {
		t.Fatal("expected an error on a truncated body")
	}

	if _, err := os.Stat(filepath.Join(dir, "album.zip")); !os.IsNotExist(err) {
		t.Error("torn file should be removed")
	}
}
