package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/config"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/logging"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/platform"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/service"
)

// envConfig supplies the default for --config.
const envConfig = "SKIACANVAS_CONFIG"

const serviceName = "skiacanvas"

// app holds global flags and the host probes shared by all subcommands.
type app struct {
	configFile string
	logFormat  string
	logLevel   string

	fingerprinter service.Fingerprinter
	reporter      platform.Reporter // nil skips distribution details
	logger        *slog.Logger
}

// newApp uses the real host fingerprinter and reporter.
func newApp() *app {
	return &app{
		fingerprinter: platform.NewFingerprinter(),
		reporter:      platform.NewHostReporter(),
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skiacanvas",
		Short: "Provision the skia-canvas native binding",
		Long: `skiacanvas fingerprints this host, selects the matching prebuilt
skia-canvas binding and keeps it cached under node_binary_path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.setupLogger(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", os.Getenv(envConfig), "config file path (.lua, .yaml or .yml)")
	flags.StringVar(&a.logFormat, "log-format", "text", "log format (json or text)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	config.RegisterFlags(flags)

	cmd.AddCommand(newEnsureCmd(a))
	cmd.AddCommand(newFingerprintCmd(a))
	cmd.AddCommand(newResolveCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newFontsCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *app) setupLogger(w io.Writer) {
	a.logger = logging.SetupWithOptions(serviceName, version, a.logFormat, w, logging.Options{
		Level: logging.ParseLevel(a.logLevel),
	})
}

// host fingerprints the machine. The report is nil when unavailable.
func (a *app) host(ctx context.Context) (platform.Key, *platform.Report) {
	key := a.fingerprinter.Fingerprint(ctx)
	if a.reporter == nil {
		return key, nil
	}
	report, err := a.reporter.Report(ctx)
	if err != nil {
		a.log().DebugContext(ctx, "platform report unavailable", "error", err)
		return key, nil
	}
	return key, report
}

// loadConfig merges defaults, the config file and changed flags.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	ctx := cmd.Context()
	key, report := a.host(ctx)

	cfg, err := config.Load(ctx, config.LoadOptions{
		Path:   a.configFile,
		Flags:  cmd.Flags(),
		Key:    key,
		Report: report,
		Logger: a.log(),
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newService builds the provisioning service for cfg.
func (a *app) newService(cfg *config.Config, opts service.Options) (*service.Skia, error) {
	opts.Fingerprinter = a.fingerprinter
	opts.Logger = a.log()
	return service.New(cfg, opts)
}

// printError reports a failed command. Config parse errors are shortened
// unless debug logging is on.
func (a *app) printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", config.FormatError(err, a.logLevel == "debug"))
}

func (a *app) log() *slog.Logger {
	if a.logger == nil {
		a.setupLogger(os.Stderr)
	}
	return a.logger
}
