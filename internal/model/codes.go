package model

// Code is the stable error code surfaced to terminal output and to script result maps.
type Code string

const (
	CodeOK               Code = "ok"
	CodeUnknownCommand   Code = "unknown_command"
	CodeInvalidArgs      Code = "invalid_args"
	CodePermissionDenied Code = "permission_denied"
	CodeNetDenied        Code = "net_denied"
	CodeNotFound         Code = "not_found"
	CodePortClosed       Code = "port_closed"
	CodeNotFile          Code = "not_file"
	CodeNotDirectory     Code = "not_directory"
	CodeNotEmpty         Code = "not_empty"
	CodeConflict         Code = "conflict"
	CodeNotTextFile      Code = "not_text_file"
	CodeTooLarge         Code = "too_large"
	CodeToolMissing      Code = "tool_missing"
	CodeAuthFailed       Code = "auth_failed"
	CodeRateLimited      Code = "rate_limited"
	CodeInternalError    Code = "internal_error"

	// Owned by the module loader; carried here so the surface stays stable.
	CodeNotALibrary     Code = "not_a_library"
	CodeImportCycle     Code = "import_cycle"
	CodeImportAmbiguous Code = "import_ambiguous"
)

// CodeAlreadyExists is the same code as CodeConflict.
const CodeAlreadyExists = CodeConflict

// Class groups codes by what the caller can do about them.
type Class string

const (
	ClassNone           Class = "none"
	ClassArgument       Class = "argument"
	ClassAuthorization  Class = "authorization"
	ClassResource       Class = "resource"
	ClassThroughput     Class = "throughput"
	ClassInfrastructure Class = "infrastructure"
)

// ClassOf returns the failure class of a code.
// Unknown commands and module-loader codes count as argument failures.
func ClassOf(c Code) Class {
	switch c {
	case CodeOK, "":
		return ClassNone
	case CodeInvalidArgs, CodeUnknownCommand, CodeNotALibrary, CodeImportCycle, CodeImportAmbiguous:
		return ClassArgument
	case CodePermissionDenied, CodeNetDenied, CodeAuthFailed:
		return ClassAuthorization
	case CodeNotFound, CodePortClosed, CodeNotFile, CodeNotDirectory, CodeNotEmpty,
		CodeConflict, CodeNotTextFile, CodeToolMissing:
		return ClassResource
	case CodeRateLimited, CodeTooLarge:
		return ClassThroughput
	default:
		return ClassInfrastructure
	}
}

// Valid reports whether c is one of the known codes.
func (c Code) Valid() bool {
	switch c {
	case CodeOK, CodeUnknownCommand, CodeInvalidArgs, CodePermissionDenied, CodeNetDenied,
		CodeNotFound, CodePortClosed, CodeNotFile, CodeNotDirectory, CodeNotEmpty,
		CodeConflict, CodeNotTextFile, CodeTooLarge, CodeToolMissing, CodeAuthFailed,
		CodeRateLimited, CodeInternalError, CodeNotALibrary, CodeImportCycle, CodeImportAmbiguous:
		return true
	}
	return false
}
