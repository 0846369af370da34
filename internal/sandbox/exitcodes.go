package sandbox

// Child exit codes (spec §6). A signal-terminated child reports the
// signal number itself, which os/exec surfaces through ExitError.
const (
	ExitNormal              = 0
	ExitAdapterInitOrProto  = 1
	ExitOutOfMemory         = 5
	ExitPreLockdownMmapFail = 7
	ExitInitRefused         = 44
)
