// Package subprocess manages the language server child process.
//
// It spawns the server binary with the fixed --stdio invocation, wires its
// three standard streams as pipes, decodes Content-Length framed messages
// from stdout, drains stderr, and reports the exit code when the process
// terminates. A Process is single-use: the client creates a fresh one for
// every connection attempt.
package subprocess
