// modload resolves and loads modules from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stackb/modload/pkg/config"
	"github.com/stackb/modload/pkg/loader"
	"github.com/stackb/modload/pkg/resolver"
)

func main() {
	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the state shared by the subcommands.
type app struct {
	configFile string
	from       string

	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:               "modload",
		Short:             "Resolve and load Starlark, data and WebAssembly modules",
		PersistentPreRunE: a.initialize,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "path to config file (default ./modload.{yaml,toml,json})")
	flags.String("base", "", "directory entry points resolve against (env: MODLOAD_BASE)")
	flags.String("log-level", "info", "log level (env: MODLOAD_LOG_LEVEL)")
	flags.Bool("preserve-symlinks", false, "do not resolve symlinks of imported modules")
	flags.Bool("preserve-symlinks-main", false, "do not resolve symlinks of entry points")
	flags.String("entry-mode", "legacy", "format of entry points without a known extension: legacy or standard")
	flags.String("package-dir", resolver.DefaultPackageDir, "directory searched for bare specifiers (env: MODLOAD_PACKAGE_DIR)")
	flags.String("loader", "", "standard module whose resolve and dynamic_instantiate functions become loader hooks (env: MODLOAD_LOADER)")
	flags.String("progress", config.ProgressNone, "module progress on stderr: none, text or json")
	flags.Bool("disable-addons", false, "refuse to load WebAssembly addons")

	root.AddCommand(a.newResolveCmd())
	root.AddCommand(a.newImportCmd())
	root.AddCommand(a.newBuiltinsCmd())
	return root
}

func (a *app) initialize(cmd *cobra.Command, _ []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.LoadOptions{File: a.configFile, Dir: wd, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: a.stderr}).Level(level).With().Timestamp().Logger()
	a.logger.Debug().Interface("config", cfg).Msg("configured")
	return nil
}

func (a *app) newLoader() (*loader.Loader, error) {
	opts, err := a.cfg.LoaderOptions(a.logger, a.stderr)
	if err != nil {
		return nil, err
	}
	return loader.New(opts)
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, styleError.Render("error:"), err)
	var legacyErr *resolver.LegacyResolutionAvailableError
	if errors.As(err, &legacyErr) {
		fmt.Fprintln(w, styleDim.Render(fmt.Sprintf("hint: the legacy loader would load %s; use require() from a legacy script", legacyErr.Found)))
	}
}
