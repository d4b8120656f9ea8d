package intrinsic

// Names of the built-in intrinsics.
const (
	NameConnect       = "connect"
	NameDisconnect    = "disconnect"
	NameExec          = "exec"
	NameFSRead        = "fs.read"
	NameFSWrite       = "fs.write"
	NameFSList        = "fs.list"
	NameFSStat        = "fs.stat"
	NameFSDelete      = "fs.delete"
	NameFSMkdir       = "fs.mkdir"
	NameNetInterfaces = "net.interfaces"
	NameNetScan       = "net.scan"
	NameNetInspect    = "net.inspect"
	NameNetSessions   = "net.sessions"
	NameFTPGet        = "ftp.get"
	NameFTPPut        = "ftp.put"
	NameTermPrint     = "term.print"
	NameTermWhoami    = "term.whoami"
)

// WithBuiltins registers every built-in intrinsic.
func WithBuiltins() Option {
	return func(b *builder) {
		for _, opt := range []Option{
			WithHandler(NameConnect, Typed(connectOp)),
			WithHandler(NameDisconnect, Typed(disconnectOp)),
			WithHandler(NameExec, Typed(execOp)),
			WithHandler(NameFSRead, Typed(fsRead)),
			WithHandler(NameFSWrite, Typed(fsWrite)),
			WithHandler(NameFSList, Typed(fsList)),
			WithHandler(NameFSStat, Typed(fsStat)),
			WithHandler(NameFSDelete, Typed(fsDelete)),
			WithHandler(NameFSMkdir, Typed(fsMkdir)),
			WithHandler(NameNetInterfaces, Typed(netInterfaces)),
			WithHandler(NameNetScan, Typed(netScan)),
			WithHandler(NameNetInspect, Typed(netInspect)),
			WithHandler(NameNetSessions, Typed(netSessions)),
			WithHandler(NameFTPGet, Typed(ftpGet)),
			WithHandler(NameFTPPut, Typed(ftpPut)),
			WithHandler(NameTermPrint, Typed(termPrint)),
			WithHandler(NameTermWhoami, Typed(termWhoami)),
		} {
			opt(b)
		}
	}
}

// Default builds the standard registry: recovery outermost, then logging and
// cancellation around every built-in.
func Default() (*Registry, error) {
	return NewRegistry(
		WithMiddleware(Recovery(), Logging(), Cancellation()),
		WithBuiltins(),
	)
}
