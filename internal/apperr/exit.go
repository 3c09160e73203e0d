package apperr

// Exit codes reported by the typeset binary. Scripts depend on the
// distinction between "the document had errors" and "the tool broke".
const (
	ExitOK          = 0
	ExitDiagnostics = 1 // compile diagnostics were reported
	ExitInternal    = 2 // internal fault (engine panic, unclassified error)
	ExitIO          = 3 // input could not be opened, config invalid, export pattern invalid
	ExitWatch       = 4 // change notification subsystem failed
)

// ExitCode maps an error to the process exit code. nil maps to ExitOK.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindDiagnostic:
		return ExitDiagnostics
	case KindInput, KindConfig, KindExportPattern, KindExportPartial:
		return ExitIO
	case KindWatchIO:
		return ExitWatch
	default:
		return ExitInternal
	}
}
