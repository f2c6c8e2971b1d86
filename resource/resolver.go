// Package resource maps request targets onto files under a document root.
package resource

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

const (
	DefaultRoot   = "./www"
	DefaultObject = "/index.html"
)

// Resolver resolves request targets against a document root
type Resolver struct {
	root           string // no trailing slash
	defaultObject  string // served for "/"
	allowTraversal bool   // true: concatenate targets verbatim, ".." included
}

// NewResolver creates a resolver. Unless allowTraversal is set, targets
// that do not start with "/" or whose ".." segments climb above the root
// are reported as not found.
func NewResolver(root, defaultObject string, allowTraversal bool) *Resolver {
	if root == "" {
		root = DefaultRoot
	}
	if defaultObject == "" {
		defaultObject = DefaultObject
	}
	if !strings.HasPrefix(defaultObject, "/") {
		defaultObject = "/" + defaultObject
	}
	return &Resolver{
		root:           strings.TrimRight(root, "/"),
		defaultObject:  defaultObject,
		allowTraversal: allowTraversal,
	}
}

// Root returns the document root
func (r *Resolver) Root() string { return r.root }

// Path computes root + target, substituting the default object for "/"
func (r *Resolver) Path(target string) (string, error) {
	if target == "/" {
		target = r.defaultObject
	}
	if !r.allowTraversal && !withinRoot(target) {
		return "", errors.NewResourceError(
			errors.ResourceErrorNotFound,
			fmt.Sprintf("target %q escapes the document root", target),
			nil,
		)
	}
	return r.root + target, nil
}

// withinRoot walks the segments of target and fails once ".." climbs above the root
func withinRoot(target string) bool {
	if !strings.HasPrefix(target, "/") {
		return false
	}

	depth := 0
	for _, step := range strings.Split(target, "/") {
		switch step {
		case "", ".":
		case "..":
			if depth < 1 {
				return false
			}
			depth--
		default:
			depth++
		}
	}
	return true
}

// Descriptor is the outcome of resolving a target. It holds an open
// handle when produced by Open.
type Descriptor struct {
	Path        string
	Size        int64
	ContentType string

	file *os.File
}

// Resolve checks that target names a regular file and reports its size
// and type without opening it. Used for HEAD.
func (r *Resolver) Resolve(target string) (*Descriptor, error) {
	path, err := r.Path(target)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, notFound(path, err)
	}

	return &Descriptor{
		Path:        path,
		Size:        info.Size(),
		ContentType: ContentType(path),
	}, nil
}

// Open resolves target and opens it for reading. The caller must Close
// the descriptor.
func (r *Resolver) Open(target string) (*Descriptor, error) {
	path, err := r.Path(target)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, notFound(path, err)
	}

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		file.Close()
		return nil, notFound(path, err)
	}

	return &Descriptor{
		Path:        path,
		Size:        info.Size(),
		ContentType: ContentType(path),
		file:        file,
	}, nil
}

// ReadAll returns exactly Size bytes of the opened file
func (d *Descriptor) ReadAll() ([]byte, error) {
	if d.file == nil {
		return nil, errors.NewResourceError(errors.ResourceErrorReadFailure, d.Path+" is not open", nil)
	}

	buf := make([]byte, d.Size)
	if _, err := io.ReadFull(d.file, buf); err != nil {
		return nil, errors.NewResourceError(errors.ResourceErrorReadFailure, d.Path, err)
	}
	return buf, nil
}

// Close releases the file handle. Safe on descriptors from Resolve and
// when called twice.
func (d *Descriptor) Close() error {
	if d == nil || d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// notFound folds "absent" and "inaccessible" into one outcome
func notFound(path string, err error) error {
	return errors.NewResourceError(errors.ResourceErrorNotFound, path, err)
}
