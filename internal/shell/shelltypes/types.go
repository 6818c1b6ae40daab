// Package shelltypes holds the small result/action vocabulary shared by the
// built-in dispatcher and the pipeline executor, so that both produce the
// same structured result shape described in spec.md §4.2/§4.3.
package shelltypes

// LoopAction tells the REPL whether to keep prompting or to terminate,
// carried alongside every command result (built-in or external).
type LoopAction int

const (
	// LoopContinue means the REPL should show the prompt again.
	LoopContinue LoopAction = iota
	// LoopTerminate means the REPL should exit, honoring ExitCode.
	LoopTerminate
)

// Result is the structured outcome of running one built-in or one Pipeline.
type Result struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	LoopAction LoopAction
}
