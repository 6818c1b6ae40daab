// Command jarvish is an interactive shell with an embedded AI agent loop
// (spec.md §2). It takes no positional arguments in interactive mode;
// flags configure logging verbosity and the config file path (spec.md §6).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiosk404/jarvish/internal/blobstore"
	"github.com/kiosk404/jarvish/internal/config"
	"github.com/kiosk404/jarvish/internal/history"
	"github.com/kiosk404/jarvish/internal/logging"
	"github.com/kiosk404/jarvish/internal/repl"
	"github.com/kiosk404/jarvish/internal/shell"
	"github.com/kiosk404/jarvish/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return exitCode
}

// exitCode carries the REPL's terminating exit code out of cobra's RunE,
// which only reports success/failure, not an arbitrary code.
var exitCode int

func newRootCommand() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:     "jarvish",
		Short:   "jarvish is an interactive shell with an embedded AI agent",
		Version: version.String(),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := runInteractive(configPath, verbose)
			exitCode = code
			return err
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to config.toml (defaults to the platform config directory)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "mirror log output to stderr in addition to the log file")

	return cmd
}

func runInteractive(configPath string, verbose bool) (int, error) {
	config.LoadDotEnv(".env")

	dataDir, err := config.DataDir()
	if err != nil {
		return 1, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return 1, fmt.Errorf("create data directory: %w", err)
	}

	if err := logging.Init(logging.Options{Dir: filepath.Join(dataDir, "logs"), Verbose: verbose}); err != nil {
		return 1, fmt.Errorf("init logging: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return 1, fmt.Errorf("load config: %w", err)
	}

	blobs, err := blobstore.Open(dataDir)
	if err != nil {
		return 1, fmt.Errorf("open blob store: %w", err)
	}

	hist, err := history.Open(filepath.Join(dataDir, "history.db"), blobs)
	if err != nil {
		return 1, fmt.Errorf("open history index: %w", err)
	}
	defer hist.Close()

	var engine *shell.Engine
	var watcher interface{ Close() error }
	reload := func() error {
		reloaded, err := config.Load(cfg.Path())
		if err != nil {
			return err
		}
		prevAlias, prevExport := cfg.Alias, cfg.Export
		*cfg = *reloaded
		if engine != nil {
			applyReload(engine, prevAlias, prevExport, cfg.Alias, cfg.Export)
		}
		return nil
	}
	if w, err := config.Watch(cfg.Path(), func() {
		if err := reload(); err != nil {
			logging.WarnX("main", "config reload failed: %v", err)
		}
	}); err == nil {
		watcher = w
		defer watcher.Close()
	}

	engine, err = shell.New(hist, cfg.Alias, reload)
	if err != nil {
		return 1, fmt.Errorf("init shell engine: %w", err)
	}
	for k, v := range cfg.Export {
		engine.Setenv(k, v)
	}

	r := repl.New(cfg, engine)
	return r.Run(context.Background()), nil
}

// applyReload pushes a freshly re-read config's alias/export tables onto the
// live shell engine, logging what changed, per the `source` built-in's
// reload contract.
func applyReload(engine *shell.Engine, prevAlias, prevExport, nextAlias, nextExport map[string]string) {
	engine.Aliases().Reset(nextAlias)
	for name, changed := range diffMaps(prevAlias, nextAlias) {
		logging.InfoX("main", "reload: alias %s %s", name, changed)
	}

	for name := range prevExport {
		if _, ok := nextExport[name]; !ok {
			engine.Unsetenv(name)
		}
	}
	for name, value := range nextExport {
		engine.Setenv(name, value)
	}
	for name, changed := range diffMaps(prevExport, nextExport) {
		logging.InfoX("main", "reload: export %s %s", name, changed)
	}
}

// diffMaps reports, for every key added, removed, or changed between prev
// and next, a short description of the change.
func diffMaps(prev, next map[string]string) map[string]string {
	changes := map[string]string{}
	for k, v := range next {
		if old, ok := prev[k]; !ok {
			changes[k] = fmt.Sprintf("added (%q)", v)
		} else if old != v {
			changes[k] = fmt.Sprintf("changed (%q -> %q)", old, v)
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changes[k] = "removed"
		}
	}
	return changes
}
