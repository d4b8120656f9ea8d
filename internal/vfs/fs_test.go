package vfs

import (
	"testing"

	"github.com/ppiankov/netshell/internal/model"
)

func TestCleanResolvesRelativeAgainstCwd(t *testing.T) {
	tests := []struct {
		cwd, p, want string
	}{
		{"/home/guest", "notes.txt", "/home/guest/notes.txt"},
		{"/home/guest", "../root", "/home/root"},
		{"/home/guest", "/etc/motd", "/etc/motd"},
		{"", "bin", "/bin"},
		{"/", "../../..", "/"},
		{"/home/guest", "", "/home/guest"},
	}
	for _, tt := range tests {
		if got := Clean(tt.cwd, tt.p); got != tt.want {
			t.Errorf("Clean(%q, %q) = %q, want %q", tt.cwd, tt.p, got, tt.want)
		}
	}
}

func TestWriteAndRead(t *testing.T) {
	fs := New()
	if err := fs.MkdirAll("/home/guest"); err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile("/home/guest/a.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := fs.ReadFile("/home/guest/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}
}

func TestWriteMissingParent(t *testing.T) {
	fs := New()
	err := fs.WriteFile("/nope/a.txt", []byte("x"))
	if model.CodeOf(err) != model.CodeNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestWriteOverDirectory(t *testing.T) {
	fs := New()
	_ = fs.MkdirAll("/tmp/dir")
	err := fs.WriteFile("/tmp/dir", []byte("x"))
	if model.CodeOf(err) != model.CodeNotFile {
		t.Errorf("expected not_file, got %v", err)
	}
}

func TestReadDirectory(t *testing.T) {
	fs := New()
	_ = fs.MkdirAll("/etc")
	_, err := fs.ReadFile("/etc")
	if model.CodeOf(err) != model.CodeNotFile {
		t.Errorf("expected not_file, got %v", err)
	}
}

func TestLookupThroughFile(t *testing.T) {
	fs := New()
	_ = fs.WriteFile("/a", []byte("x"))
	_, err := fs.Stat("/a/b")
	if model.CodeOf(err) != model.CodeNotDirectory {
		t.Errorf("expected not_directory, got %v", err)
	}
}

func TestMkdirExisting(t *testing.T) {
	fs := New()
	_ = fs.Mkdir("/srv")
	err := fs.Mkdir("/srv")
	if model.CodeOf(err) != model.CodeAlreadyExists {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestRemoveNonEmpty(t *testing.T) {
	fs := New()
	_ = fs.MkdirAll("/var/log")
	err := fs.Remove("/var")
	if model.CodeOf(err) != model.CodeNotEmpty {
		t.Errorf("expected not_empty, got %v", err)
	}
	if err := fs.Remove("/var/log"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Remove("/var"); err != nil {
		t.Fatal(err)
	}
	if fs.Exists("/var") {
		t.Error("expected /var removed")
	}
}

func TestRemoveRoot(t *testing.T) {
	fs := New()
	if model.CodeOf(fs.Remove("/")) != model.CodeInvalidArgs {
		t.Error("expected invalid_args removing root")
	}
}

func TestListSorted(t *testing.T) {
	fs := New()
	_ = fs.MkdirAll("/bin")
	_ = fs.WriteProgram("/bin/scan", "netscan", nil)
	_ = fs.WriteProgram("/bin/ftp", "ftp", nil)
	_ = fs.Mkdir("/bin/extra")

	entries, err := fs.List("/bin")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "extra" || entries[1].Name != "ftp" || entries[2].Name != "scan" {
		t.Errorf("unexpected order: %v", entries)
	}
	if entries[2].Program != "netscan" || entries[2].Path != "/bin/scan" {
		t.Errorf("unexpected entry %+v", entries[2])
	}
	if !entries[0].IsDir() {
		t.Error("expected extra to be a directory")
	}
}

func TestOverwriteKeepsProgramTag(t *testing.T) {
	fs := New()
	_ = fs.WriteProgram("/tool", "netscan", []byte("v1"))
	_ = fs.WriteFile("/tool", []byte("v2"))
	e, err := fs.Stat("/tool")
	if err != nil {
		t.Fatal(err)
	}
	if e.Program != "netscan" || e.Size != 2 {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestIsText(t *testing.T) {
	if !IsText([]byte("plain text\n")) {
		t.Error("expected plain text to be text")
	}
	if IsText([]byte{0x00, 0x01}) {
		t.Error("expected NUL bytes to be binary")
	}
	if IsText([]byte{0xff, 0xfe}) {
		t.Error("expected invalid UTF-8 to be binary")
	}
}
