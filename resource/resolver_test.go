package resource

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// setupRoot creates a document root holding the given files
func setupRoot(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return root
}

func TestResolver_Open_ReadsExactBytes(t *testing.T) {
	content := "<html><body>hello, fifty bytes of html!</body></html>"
	root := setupRoot(t, map[string]string{"index.html": content})

	r := NewResolver(root, DefaultObject, false)
	d, err := r.Open("/index.html")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	if d.Size != int64(len(content)) {
		t.Errorf("Expected size %d, got %d", len(content), d.Size)
	}
	if d.ContentType != "text/html" {
		t.Errorf("Expected text/html, got %q", d.ContentType)
	}

	body, err := d.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(body, []byte(content)) {
		t.Errorf("Expected %q, got %q", content, body)
	}
}

func TestResolver_DefaultObject(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": "home"})
	r := NewResolver(root+"/", "index.html", false)

	slash, err := r.Resolve("/")
	if err != nil {
		t.Fatalf("Resolve(/) failed: %v", err)
	}
	explicit, err := r.Resolve("/index.html")
	if err != nil {
		t.Fatalf("Resolve(/index.html) failed: %v", err)
	}

	if slash.Path != explicit.Path || slash.Size != explicit.Size {
		t.Errorf("Expected / to resolve like /index.html, got %+v and %+v", slash, explicit)
	}
}

func TestResolver_NotFound(t *testing.T) {
	root := setupRoot(t, map[string]string{"sub/page.txt": "x"})
	r := NewResolver(root, DefaultObject, false)

	for _, target := range []string{"/missing.html", "/sub", "/sub/", "/index.html"} {
		if _, err := r.Resolve(target); !errors.IsResourceNotFound(err) {
			t.Errorf("Resolve(%q): expected not found, got %v", target, err)
		}
		if _, err := r.Open(target); !errors.IsResourceNotFound(err) {
			t.Errorf("Open(%q): expected not found, got %v", target, err)
		}
	}
}

func TestResolver_Traversal(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "www")
	if err := os.MkdirAll(filepath.Join(root, "a"), 0o755); err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	if err := os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatalf("Failed to write secret: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "ok.txt"), []byte("ok"), 0o644); err != nil {
		t.Fatalf("Failed to write ok.txt: %v", err)
	}

	hardened := NewResolver(root, DefaultObject, false)
	for _, target := range []string{"/../secret.txt", "/a/../../secret.txt", "secret.txt"} {
		if _, err := hardened.Resolve(target); !errors.IsResourceNotFound(err) {
			t.Errorf("Resolve(%q): expected not found, got %v", target, err)
		}
	}
	if _, err := hardened.Resolve("/a/../ok.txt"); err != nil {
		t.Errorf("A .. that stays inside the root must resolve: %v", err)
	}

	verbatim := NewResolver(root, DefaultObject, true)
	d, err := verbatim.Resolve("/../secret.txt")
	if err != nil {
		t.Fatalf("Verbatim resolver must concatenate the target: %v", err)
	}
	if d.Size != int64(len("secret")) {
		t.Errorf("Expected size %d, got %d", len("secret"), d.Size)
	}
}

func TestDescriptor_CloseIdempotent(t *testing.T) {
	root := setupRoot(t, map[string]string{"a.txt": "a"})
	d, err := NewResolver(root, DefaultObject, false).Open("/a.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
	if _, err := d.ReadAll(); err == nil {
		t.Error("Expected ReadAll on a closed descriptor to fail")
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"./www/index.html": "text/html",
		"/notes.txt":       "text/plain",
		"/a/photo.jpg":     "image/jpg",
		"/logo.PNG":        "image/png",
		"/anim.gif":        "image/gif",
		"/style.css":       "text/css",
		"/app.js":          "",
		"./www/README":     "",
		"/dir.d/file":      "",
	}

	for path, want := range tests {
		if got := ContentType(path); got != want {
			t.Errorf("ContentType(%q): expected %q, got %q", path, want, got)
		}
	}
}
