// Package builtin implements jarvish's built-in command dispatch table
// (spec.md §4.2): commands that run in the shell's own address space and may
// mutate shell state. Built-ins never write directly to the terminal; they
// return a structured shelltypes.Result so their output flows through the
// same capture/record path as external commands.
package builtin

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/gosuri/uitable"

	"github.com/kiosk404/jarvish/internal/history"
	"github.com/kiosk404/jarvish/internal/shell/alias"
	"github.com/kiosk404/jarvish/internal/shell/shelltypes"
)

// State is the shell-global, REPL-task-confined state that built-ins may
// read or mutate (spec.md §5: "mutated only by built-ins running in the REPL
// task").
type State interface {
	Cwd() string
	Chdir(path string) error
	Getenv(key string) string
	Setenv(key, value string)
	Unsetenv(key string)
	Environ() []string
	Aliases() *alias.Table
	History() *history.Index
	ReloadConfig() error
}

// Func is the signature every built-in implements.
type Func func(st State, args []string) shelltypes.Result

// Registry is the fixed name→Func dispatch table.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry builds the registry with every built-in named in spec.md §4.2.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.funcs["cd"] = cdBuiltin
	r.funcs["cwd"] = cwdBuiltin
	r.funcs["exit"] = exitBuiltin
	r.funcs["export"] = exportBuiltin
	r.funcs["unset"] = unsetBuiltin
	r.funcs["alias"] = aliasBuiltin
	r.funcs["unalias"] = unaliasBuiltin
	r.funcs["history"] = historyBuiltin
	r.funcs["help"] = helpBuiltin(r)
	r.funcs["which"] = whichBuiltin(r)
	r.funcs["type"] = typeBuiltin(r)
	r.funcs["true"] = trueBuiltin
	r.funcs["false"] = falseBuiltin
	r.funcs["source"] = sourceBuiltin
	return r
}

// IsBuiltin reports whether name is a recognized built-in.
func (r *Registry) IsBuiltin(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names returns all built-in names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named built-in. ok is false if name is not a built-in.
func (r *Registry) Dispatch(st State, name string, args []string) (res shelltypes.Result, ok bool) {
	fn, found := r.funcs[name]
	if !found {
		return shelltypes.Result{}, false
	}
	return fn(st, args), true
}

func cdBuiltin(st State, args []string) shelltypes.Result {
	target := st.Getenv("HOME")
	if len(args) > 0 {
		target = args[0]
	}
	info, err := os.Stat(target)
	if err != nil {
		return shelltypes.Result{
			Stderr:   fmt.Sprintf("cd: %s: no such file or directory\n", target),
			ExitCode: 1,
		}
	}
	if !info.IsDir() {
		return shelltypes.Result{
			Stderr:   fmt.Sprintf("cd: %s: not a directory\n", target),
			ExitCode: 1,
		}
	}
	if err := st.Chdir(target); err != nil {
		return shelltypes.Result{Stderr: fmt.Sprintf("cd: %v\n", err), ExitCode: 1}
	}
	st.Setenv("PWD", st.Cwd())
	return shelltypes.Result{ExitCode: 0}
}

func cwdBuiltin(st State, _ []string) shelltypes.Result {
	return shelltypes.Result{Stdout: st.Cwd() + "\n", ExitCode: 0}
}

func exitBuiltin(_ State, args []string) shelltypes.Result {
	code := 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			code = n
		}
	}
	return shelltypes.Result{ExitCode: code, LoopAction: shelltypes.LoopTerminate}
}

func exportBuiltin(st State, args []string) shelltypes.Result {
	if len(args) == 0 {
		var b strings.Builder
		for _, kv := range st.Environ() {
			fmt.Fprintf(&b, "%s\n", kv)
		}
		return shelltypes.Result{Stdout: b.String(), ExitCode: 0}
	}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return shelltypes.Result{
				Stderr:   fmt.Sprintf("export: invalid assignment %q\n", arg),
				ExitCode: 1,
			}
		}
		st.Setenv(k, v)
	}
	return shelltypes.Result{ExitCode: 0}
}

func unsetBuiltin(st State, args []string) shelltypes.Result {
	for _, name := range args {
		st.Unsetenv(name)
	}
	return shelltypes.Result{ExitCode: 0}
}

func aliasBuiltin(st State, args []string) shelltypes.Result {
	if len(args) == 0 {
		var b strings.Builder
		for _, entry := range st.Aliases().List() {
			fmt.Fprintf(&b, "%s\n", entry)
		}
		return shelltypes.Result{Stdout: b.String(), ExitCode: 0}
	}
	for _, arg := range args {
		name, expansion, ok := strings.Cut(arg, "=")
		if !ok {
			return shelltypes.Result{
				Stderr:   fmt.Sprintf("alias: invalid syntax %q, expected name=value\n", arg),
				ExitCode: 1,
			}
		}
		st.Aliases().Set(name, strings.Trim(expansion, "'\""))
	}
	return shelltypes.Result{ExitCode: 0}
}

func unaliasBuiltin(st State, args []string) shelltypes.Result {
	if len(args) == 0 {
		return shelltypes.Result{Stderr: "unalias: usage: unalias NAME\n", ExitCode: 1}
	}
	for _, name := range args {
		st.Aliases().Unset(name)
	}
	return shelltypes.Result{ExitCode: 0}
}

func historyBuiltin(st State, args []string) shelltypes.Result {
	n := 20
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			n = v
		}
	}

	h := st.History()
	if h == nil {
		return shelltypes.Result{Stderr: "history: unavailable\n", ExitCode: 1}
	}

	recs, err := h.Recent(n)
	if err != nil {
		return shelltypes.Result{Stderr: fmt.Sprintf("history: %v\n", err), ExitCode: 1}
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("ID", "EXIT", "CWD", "COMMAND", "WHEN")
	for _, r := range recs {
		table.AddRow(r.ID, r.ExitCode, r.Cwd, r.Command, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return shelltypes.Result{Stdout: table.String() + "\n", ExitCode: 0}
}

func helpBuiltin(r *Registry) Func {
	return func(_ State, _ []string) shelltypes.Result {
		return shelltypes.Result{
			Stdout:   "built-in commands: " + strings.Join(r.Names(), ", ") + "\n",
			ExitCode: 0,
		}
	}
}

func whichBuiltin(r *Registry) Func {
	return func(_ State, args []string) shelltypes.Result {
		if len(args) == 0 {
			return shelltypes.Result{Stderr: "which: usage: which NAME\n", ExitCode: 1}
		}
		name := args[0]
		if r.IsBuiltin(name) {
			return shelltypes.Result{Stdout: name + ": shell built-in\n", ExitCode: 0}
		}
		path, err := exec.LookPath(name)
		if err != nil {
			return shelltypes.Result{Stderr: fmt.Sprintf("which: %s not found\n", name), ExitCode: 1}
		}
		return shelltypes.Result{Stdout: path + "\n", ExitCode: 0}
	}
}

func typeBuiltin(r *Registry) Func {
	return func(_ State, args []string) shelltypes.Result {
		if len(args) == 0 {
			return shelltypes.Result{Stderr: "type: usage: type NAME\n", ExitCode: 1}
		}
		name := args[0]
		if r.IsBuiltin(name) {
			return shelltypes.Result{Stdout: fmt.Sprintf("%s is a shell built-in\n", name), ExitCode: 0}
		}
		path, err := exec.LookPath(name)
		if err != nil {
			return shelltypes.Result{Stderr: fmt.Sprintf("type: %s: not found\n", name), ExitCode: 1}
		}
		return shelltypes.Result{Stdout: fmt.Sprintf("%s is %s\n", name, path), ExitCode: 0}
	}
}

func trueBuiltin(_ State, _ []string) shelltypes.Result  { return shelltypes.Result{ExitCode: 0} }
func falseBuiltin(_ State, _ []string) shelltypes.Result { return shelltypes.Result{ExitCode: 1} }

func sourceBuiltin(st State, _ []string) shelltypes.Result {
	if err := st.ReloadConfig(); err != nil {
		return shelltypes.Result{Stderr: fmt.Sprintf("source: %v\n", err), ExitCode: 1}
	}
	return shelltypes.Result{ExitCode: 0}
}
