package server

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// rawResponse is one response as read off the wire
type rawResponse struct {
	statusLine string
	headers    []string // in wire order
	body       []byte
	raw        []byte
}

func (r rawResponse) header(name string) string {
	prefix := name + ": "
	for _, h := range r.headers {
		if strings.HasPrefix(h, prefix) {
			return strings.TrimPrefix(h, prefix)
		}
	}
	return ""
}

func (r rawResponse) contentLength(t *testing.T) int {
	t.Helper()
	n, err := strconv.Atoi(r.header("Content-Length"))
	if err != nil {
		t.Fatalf("Bad Content-Length in %q: %v", r.raw, err)
	}
	return n
}

// readResponse reads a status line, headers and, unless head is set,
// Content-Length body bytes.
func readResponse(t *testing.T, r *bufio.Reader, head bool) rawResponse {
	t.Helper()

	var resp rawResponse
	var raw strings.Builder

	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read status line: %v", err)
	}
	raw.WriteString(line)
	resp.statusLine = strings.TrimSuffix(line, "\r\n")

	length := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("Failed to read header: %v", err)
		}
		raw.WriteString(line)
		line = strings.TrimSuffix(line, "\r\n")
		if line == "" {
			break
		}
		resp.headers = append(resp.headers, line)
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			length, _ = strconv.Atoi(v)
		}
	}

	if !head {
		resp.body = make([]byte, length)
		if _, err := io.ReadFull(r, resp.body); err != nil {
			t.Fatalf("Failed to read %d body bytes: %v", length, err)
		}
		raw.Write(resp.body)
	}

	resp.raw = []byte(raw.String())
	return resp
}

// expectEOF asserts that the server closed the connection with nothing more to send
func expectEOF(t *testing.T, r *bufio.Reader) {
	t.Helper()

	extra, err := r.ReadByte()
	if err == nil {
		t.Fatalf("Expected connection close, got extra byte %q", extra)
	}
	if err != io.EOF {
		t.Fatalf("Expected EOF, got %v", err)
	}
}

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
