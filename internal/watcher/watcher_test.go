package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const waitFor = 2 * time.Second

type recordingHandler struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (h *recordingHandler) Changed(_ context.Context, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changed = append(h.changed, path)
}

func (h *recordingHandler) Removed(_ context.Context, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, path)
}

func (h *recordingHandler) snapshot() (changed, removed []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.changed...), append([]string(nil), h.removed...)
}

// eventually polls cond until it holds or waitFor elapses.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error(msg)
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, roots, exts []string, recursive bool, h Handler) *Watcher {
	t.Helper()
	w := New(roots, exts, recursive, h, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, nil, []string{".yaml"}, true, &recordingHandler{})

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, []string{dir}, []string{".yaml"}, true, h)

	path := filepath.Join(dir, "credit.yaml")
	for i := 0; i < 3; i++ {
		if err := writeFile(path, "name: credit"); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "notes.md"), "x"); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool {
		changed, _ := h.snapshot()
		return hasSuffix(changed, "credit.yaml")
	}, "expected credit.yaml to be re-audited")

	time.Sleep(200 * time.Millisecond)
	changed, _ := h.snapshot()
	if len(changed) != 1 {
		t.Errorf("expected one debounced callback, got %v", changed)
	}
	if hasSuffix(changed, "notes.md") {
		t.Error("notes.md should be filtered out")
	}
}

func TestWatcher_RemoveEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credit.params")
	if err := writeFile(path, "1\n0.5 0.5\n0.5 0.5 0.5 0.5\n"); err != nil {
		t.Fatal(err)
	}
	h := &recordingHandler{}
	startWatcher(t, []string{dir}, []string{".params"}, true, h)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, removed := h.snapshot()
		return hasSuffix(removed, "credit.params")
	}, "expected a remove callback for credit.params")
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.yaml", []string{".yaml"}, true},
		{"/a/b.YAML", []string{".yaml"}, true},
		{"/a/b.params", []string{"params"}, true},
		{"/a/b.md", []string{".yaml"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.yaml", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
		{"/tmp/a", "/tmp/ab", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.yaml", "ignore.xyz", filepath.Join("sub", "b.yaml")} {
		if err := writeFile(filepath.Join(dir, name), "name: x"); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		recursive bool
		want      int
	}{
		{true, 2},
		{false, 1},
	}
	for _, tt := range tests {
		h := &recordingHandler{}
		w := startWatcher(t, []string{dir}, []string{".yaml"}, tt.recursive, h)
		w.SyncExisting()
		changed, _ := h.snapshot()
		if len(changed) != tt.want || !hasSuffix(changed, "a.yaml") {
			t.Errorf("recursive=%v: got %v, want %d files", tt.recursive, changed, tt.want)
		}
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, []string{".yaml"}, true, &recordingHandler{})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_NewDirectory_auditsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, []string{dir}, []string{".yaml", ".params"}, true, h)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.yaml"), "name: deep"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "level1", "top.params"), "1"); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool {
		changed, _ := h.snapshot()
		return hasSuffix(changed, "deep.yaml") && hasSuffix(changed, "top.params")
	}, "expected files in the new directory tree to be audited")
}

func TestWatcher_IgnoresEventsOutsideRoots(t *testing.T) {
	w := New([]string{"/tmp/models"}, nil, true, &recordingHandler{})
	if w.underRoot("/tmp/other/model.yaml") {
		t.Error("path outside roots reported as under root")
	}
	if !w.underRoot("/tmp/models/x/model.yaml") {
		t.Error("nested path not reported as under root")
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
