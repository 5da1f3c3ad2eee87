// Package elevation coordinates privileged power-flag writes through a
// separately spawned helper process.
//
// When a direct registry write is denied, the mutation is handed to the
// Coordinator, which owns the single in-flight privileged operation:
//
//	Idle → Launching → AwaitingResult → {Completed | Failed | TimedOut} → Idle
//
// The helper is a PowerShell process raised through the OS elevation
// prompt. It carries one parameterized instruction that performs the
// mutation and writes a {success, message} JSON object to an ephemeral
// result artifact before exiting. The coordinator polls for that
// artifact at a fixed interval; the artifact is the sole communication
// channel between the two processes, chosen over pipes or sockets for
// robustness across the privilege boundary.
//
// At timeout the waiting side is abandoned: the helper is never killed,
// its artifact path is never revisited, and any late result is
// orphaned. Every terminal transition clears the pending operation,
// triggers a snapshot refresh, and emits a StatusEvent carrying the
// correlation token, so consumers see completion as a discrete message
// rather than a callback.
package elevation
