// Package vfs is a minimal in-memory filesystem used as each host's storage.
// It is not safe for concurrent use; the scheduler's owner loop is its only caller.
package vfs

import (
	"bytes"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/netshell/internal/model"
)

// Kind distinguishes files from directories.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// Entry is a read-only view of one filesystem node.
type Entry struct {
	Name    string
	Path    string
	Kind    Kind
	Size    int
	Program string // executable payload tag, empty for plain files
	ModTime time.Time
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

type node struct {
	name     string
	kind     Kind
	data     []byte
	program  string
	modTime  time.Time
	children map[string]*node
}

// FS is a rooted tree of nodes.
type FS struct {
	root *node
	now  func() time.Time
}

// New returns an empty filesystem containing only "/".
func New() *FS {
	fs := &FS{now: func() time.Time { return time.Now().UTC() }}
	fs.root = &node{name: "/", kind: KindDir, children: make(map[string]*node), modTime: fs.now()}
	return fs
}

// Clean resolves p against cwd and returns an absolute, normalized path.
func Clean(cwd, p string) string {
	if cwd == "" {
		cwd = "/"
	}
	if p == "" {
		p = "."
	}
	if !path.IsAbs(p) {
		p = path.Join(cwd, p)
	}
	return path.Clean("/" + strings.TrimLeft(p, "/"))
}

func split(p string) []string {
	p = Clean("/", p)
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

func (fs *FS) lookup(p string) (*node, error) {
	cur := fs.root
	for _, part := range split(p) {
		if cur.kind != KindDir {
			return nil, model.Fail(model.CodeNotDirectory, "%s: not a directory", p)
		}
		next, ok := cur.children[part]
		if !ok {
			return nil, model.Fail(model.CodeNotFound, "%s: no such file or directory", p)
		}
		cur = next
	}
	return cur, nil
}

func (fs *FS) parent(p string) (*node, string, error) {
	p = Clean("/", p)
	if p == "/" {
		return nil, "", model.Fail(model.CodeInvalidArgs, "/: cannot modify root")
	}
	dir, base := path.Split(p)
	parent, err := fs.lookup(dir)
	if err != nil {
		return nil, "", err
	}
	if parent.kind != KindDir {
		return nil, "", model.Fail(model.CodeNotDirectory, "%s: not a directory", dir)
	}
	return parent, base, nil
}

func entryOf(p string, n *node) Entry {
	return Entry{
		Name:    n.name,
		Path:    Clean("/", p),
		Kind:    n.kind,
		Size:    len(n.data),
		Program: n.program,
		ModTime: n.modTime,
	}
}

// Stat returns the entry at p.
func (fs *FS) Stat(p string) (Entry, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return Entry{}, err
	}
	return entryOf(p, n), nil
}

// Exists reports whether anything lives at p.
func (fs *FS) Exists(p string) bool {
	_, err := fs.lookup(p)
	return err == nil
}

// IsDir reports whether p is an existing directory.
func (fs *FS) IsDir(p string) bool {
	n, err := fs.lookup(p)
	return err == nil && n.kind == KindDir
}

// ReadFile returns a copy of the file contents at p.
func (fs *FS) ReadFile(p string) ([]byte, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.kind == KindDir {
		return nil, model.Fail(model.CodeNotFile, "%s: is a directory", p)
	}
	return bytes.Clone(n.data), nil
}

// WriteFile creates or replaces a plain file at p. The parent must exist.
// Overwriting keeps the existing payload tag.
func (fs *FS) WriteFile(p string, data []byte) error {
	return fs.write(p, data, nil)
}

// WriteProgram creates or replaces an executable file carrying a payload tag.
func (fs *FS) WriteProgram(p, tag string, data []byte) error {
	return fs.write(p, data, &tag)
}

func (fs *FS) write(p string, data []byte, tag *string) error {
	parent, base, err := fs.parent(p)
	if err != nil {
		return err
	}
	if existing, ok := parent.children[base]; ok {
		if existing.kind == KindDir {
			return model.Fail(model.CodeNotFile, "%s: is a directory", p)
		}
		existing.data = bytes.Clone(data)
		existing.modTime = fs.now()
		if tag != nil {
			existing.program = *tag
		}
		return nil
	}
	n := &node{name: base, kind: KindFile, data: bytes.Clone(data), modTime: fs.now()}
	if tag != nil {
		n.program = *tag
	}
	parent.children[base] = n
	return nil
}

// Mkdir creates a single directory. The parent must exist.
func (fs *FS) Mkdir(p string) error {
	parent, base, err := fs.parent(p)
	if err != nil {
		return err
	}
	if _, ok := parent.children[base]; ok {
		return model.Fail(model.CodeAlreadyExists, "%s: already exists", p)
	}
	parent.children[base] = &node{name: base, kind: KindDir, children: make(map[string]*node), modTime: fs.now()}
	return nil
}

// MkdirAll creates p and any missing parents.
func (fs *FS) MkdirAll(p string) error {
	cur := fs.root
	walked := ""
	for _, part := range split(p) {
		walked += "/" + part
		next, ok := cur.children[part]
		if !ok {
			next = &node{name: part, kind: KindDir, children: make(map[string]*node), modTime: fs.now()}
			cur.children[part] = next
		} else if next.kind != KindDir {
			return model.Fail(model.CodeNotDirectory, "%s: not a directory", walked)
		}
		cur = next
	}
	return nil
}

// Remove deletes a file or an empty directory.
func (fs *FS) Remove(p string) error {
	parent, base, err := fs.parent(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[base]
	if !ok {
		return model.Fail(model.CodeNotFound, "%s: no such file or directory", p)
	}
	if n.kind == KindDir && len(n.children) > 0 {
		return model.Fail(model.CodeNotEmpty, "%s: directory not empty", p)
	}
	delete(parent.children, base)
	return nil
}

// List returns the entries of directory p sorted by name.
func (fs *FS) List(p string) ([]Entry, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.kind != KindDir {
		return nil, model.Fail(model.CodeNotDirectory, "%s: not a directory", p)
	}
	dir := Clean("/", p)
	out := make([]Entry, 0, len(n.children))
	for name, child := range n.children {
		out = append(out, entryOf(path.Join(dir, name), child))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// IsText reports whether data looks like a text file: valid UTF-8 without NUL bytes.
func IsText(data []byte) bool {
	return utf8.Valid(data) && bytes.IndexByte(data, 0) < 0
}

// Usage returns the number of files and their total size.
func (fs *FS) Usage() (files, size int) {
	var walk func(n *node)
	walk = func(n *node) {
		if n.kind == KindFile {
			files++
			size += len(n.data)
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(fs.root)
	return files, size
}
