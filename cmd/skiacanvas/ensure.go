package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/binary"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/capability"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/service"
)

// ensureConfig holds configuration for the ensure command.
type ensureConfig struct {
	metricsFile string
	progress    bool
	load        bool
}

func newEnsureCmd(a *app) *cobra.Command {
	cfg := &ensureConfig{}

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Download the native binding unless it is already cached",
		Long: `Ensure the prebuilt binding for this host is present under
node_binary_path, downloading and unpacking it when missing. With --load the
binding is also opened and its exports are listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnsure(cmd, a, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsFile, "metrics-textfile", "", "write provisioning metrics in Prometheus text format to this file")
	cmd.Flags().BoolVar(&cfg.progress, "progress", false, "report download progress on stderr")
	cmd.Flags().BoolVar(&cfg.load, "load", false, "open the binding after provisioning and list its exports")

	return cmd
}

func runEnsure(cmd *cobra.Command, a *app, ec *ensureConfig) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	opts := service.Options{Metrics: binary.NewMetrics(reg)}
	if ec.progress {
		opts.Progress = progressPrinter(cmd.ErrOrStderr())
	}

	svc, err := a.newService(cfg, opts)
	if err != nil {
		return err
	}

	// Metrics are written even when provisioning fails.
	defer func() {
		if ec.metricsFile == "" {
			return
		}
		if werr := prometheus.WriteToTextfile(ec.metricsFile, reg); werr != nil {
			a.log().WarnContext(ctx, "failed to write metrics", "path", ec.metricsFile, "error", werr)
		}
	}()

	out := cmd.OutOrStdout()

	if ec.load {
		module, err := svc.Start(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = module.Close() }()
		fmt.Fprintf(out, "loaded %s\n", module.Path)
		printExports(out, module)
		return nil
	}

	m, err := svc.Manager(ctx)
	if err != nil {
		return err
	}
	res, err := m.EnsureArtifact(ctx)
	if err != nil {
		return err
	}

	switch res.State {
	case binary.StateCached:
		fmt.Fprintf(out, "✓ %s already cached at %s\n", res.Descriptor.Name, res.Path)
	default:
		fmt.Fprintf(out, "✓ Installed %s (%d bytes, %s, verified: %s)\n",
			res.Descriptor.Name, res.Bytes, res.Duration.Round(time.Millisecond), res.Verified)
		fmt.Fprintf(out, "  %s\n", res.Path)
	}
	return nil
}

func printExports(w io.Writer, module *capability.Capability) {
	available := module.Available()
	names := make([]string, len(available))
	for i, e := range available {
		names[i] = string(e)
	}
	fmt.Fprintf(w, "exports (%d): %s\n", len(names), strings.Join(names, ", "))
}

// progressPrinter reports each whole percent once. Downloads without a
// Content-Length report bytes instead.
func progressPrinter(w io.Writer) binary.ProgressObserver {
	last := -1
	return binary.ProgressObserverFunc(func(p binary.Progress) {
		if p.Total < 0 {
			fmt.Fprintf(w, "\rdownloaded %d bytes", p.Downloaded)
			return
		}
		pct := int(p.Percent)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\rdownloading %3d%%", pct)
		if pct >= 100 {
			fmt.Fprintln(w)
		}
	})
}
