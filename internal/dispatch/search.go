package dispatch

import (
	"path"
	"strings"

	"github.com/ppiankov/netshell/internal/vfs"
)

// DefaultSystemDir holds the bundled executables on every host.
const DefaultSystemDir = "/bin"

// SearchPolicy decides where program names resolve. The order is fixed: a
// bare name tries the working directory then the system directory; a name
// containing a separator resolves against the working directory only.
type SearchPolicy struct {
	SystemDir string
}

func (p SearchPolicy) systemDir() string {
	if p.SystemDir == "" {
		return DefaultSystemDir
	}
	return p.SystemDir
}

// Candidates returns the absolute paths tried for name, in order.
func (p SearchPolicy) Candidates(cwd, name string) []string {
	if name == "" {
		return nil
	}
	if strings.Contains(name, "/") {
		return []string{vfs.Clean(cwd, name)}
	}
	local := vfs.Clean(cwd, name)
	system := path.Join(p.systemDir(), name)
	if local == system {
		return []string{local}
	}
	return []string{local, system}
}

// SystemPath returns where a bundled tool lives.
func (p SearchPolicy) SystemPath(name string) string {
	return path.Join(p.systemDir(), name)
}

// Resolve returns the first candidate that is a file. Directories are skipped.
func (p SearchPolicy) Resolve(fs *vfs.FS, cwd, name string) (vfs.Entry, bool) {
	for _, c := range p.Candidates(cwd, name) {
		e, err := fs.Stat(c)
		if err == nil && !e.IsDir() {
			return e, true
		}
	}
	return vfs.Entry{}, false
}
