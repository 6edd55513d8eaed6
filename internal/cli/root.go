// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arc-language/envboot"
	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
)

// Version is set via -ldflags
var Version = "dev"

// Options lets tests replace the process environment, the command runner
// and the output streams
type Options struct {
	Environ env.Environ
	Runner  backend.Runner
	Stdout  io.Writer
	Stderr  io.Writer
}

// app holds the state shared by all subcommands of one invocation
type app struct {
	opts    Options
	cfgFile string
	config  *core.Config
	logger  *log.Logger
	viper   *viper.Viper
}

// configKeys are the settings that flags and ENVBOOT_* variables override
var configKeys = []string{"root", "manifest", "backend", "python", "archive-dir", "index-url", "debug"}

// NewRootCmd builds the command tree
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	a := &app{opts: opts, viper: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "envboot",
		Short: "Create, activate and populate isolated Python environments",
		Long: TitleStyle.Render("envboot") + SubtitleStyle.Render(" - environment bootstrap") + `

envboot turns "create a virtual environment, activate it, install
requirements.txt" into one idempotent, scriptable command.

` + SubtitleStyle.Render("Examples:") + `
  envboot bootstrap                      Create .venv and install requirements.txt
  eval "$(envboot bootstrap --print-env)" Same, and activate it in this shell
  eval "$(envboot activate)"             Activate an existing environment
  eval "$(envboot deactivate)"           Restore the shell
  envboot install dev-requirements.txt   Install into the active environment`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}
	rootCmd.SetOut(opts.Stdout)
	rootCmd.SetErr(opts.Stderr)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./envboot.yaml, then $HOME/.config/envboot/config.yaml)")
	flags.String("root", core.DefaultRoot, "environment root directory")
	flags.String("manifest", core.DefaultManifest, "default manifest file")
	flags.String("backend", string(backend.BackendAuto), "installation backend (auto, pip, uv, archive)")
	flags.String("python", "python3", "interpreter used to create environments")
	flags.String("archive-dir", "", "directory of <name>-<version>.tar.xz archives for the archive backend")
	flags.String("index-url", "", "package index URL for pip and uv")
	flags.Bool("debug", false, "enable debug logging")

	// Add commands
	rootCmd.AddCommand(
		a.newCreateCmd(),
		a.newActivateCmd(),
		a.newDeactivateCmd(),
		a.newInstallCmd(),
		a.newBootstrapCmd(),
		a.newStatusCmd(),
		a.newBackendsCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	err := fang.Execute(
		context.Background(),
		NewRootCmd(Options{}),
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	return ExitCode(err)
}

// initConfig layers the config file, ENVBOOT_* variables and flags
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := core.LoadConfig(a.cfgFile)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	v := a.viper
	v.SetEnvPrefix("ENVBOOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("root", cfg.Root)
	v.SetDefault("manifest", cfg.Manifest)
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("python", cfg.Python)
	v.SetDefault("archive-dir", cfg.ArchiveDir)
	v.SetDefault("index-url", cfg.IndexURL)
	v.SetDefault("debug", cfg.Debug)

	for _, key := range configKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
			return fmt.Errorf("binding flag %s: %w", key, err)
		}
	}

	cfg.Root = v.GetString("root")
	cfg.Manifest = v.GetString("manifest")
	cfg.Backend = v.GetString("backend")
	cfg.Python = v.GetString("python")
	cfg.ArchiveDir = v.GetString("archive-dir")
	cfg.IndexURL = v.GetString("index-url")
	cfg.Debug = v.GetBool("debug")
	a.config = cfg

	a.logger = log.NewWithOptions(a.opts.Stderr, log.Options{
		Prefix: "envboot",
		Level:  log.InfoLevel,
	})
	if cfg.Debug {
		a.logger.SetLevel(log.DebugLevel)
		a.logger.SetReportTimestamp(true)
	}
	a.logger.Debug("configuration loaded", "root", cfg.Root, "backend", cfg.Backend, "config", a.cfgFile)

	return nil
}

// orchestrator builds the library facade from the resolved configuration
func (a *app) orchestrator() *envboot.Orchestrator {
	o := envboot.New(a.config, &envboot.Options{
		Environ: a.opts.Environ,
		Logger:  a.logger,
		Runner:  a.opts.Runner,
	})
	a.logger.Debug("orchestrator ready", "orchestrator", o.String())
	return o
}

// shellFlag resolves --shell, falling back to $SHELL
func shellFlag(value string) string {
	if value != "" {
		return value
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		name := shell[strings.LastIndex(shell, "/")+1:]
		if env.SupportedShell(name) {
			return name
		}
	}
	return env.DefaultShell
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
