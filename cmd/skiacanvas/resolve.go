package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/binary"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/service"
)

// ResolveOutput is the JSON form of the resolve command.
type ResolveOutput struct {
	Platform  string `json:"platform"`
	Artifact  string `json:"artifact"`
	Version   string `json:"version"`
	URL       string `json:"url"`
	Archive   string `json:"archive"`
	FinalPath string `json:"final_path"`
}

func newResolveCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which artifact this host needs and where it is cached",
		Long: `Resolve the artifact name, download URL and cache path for this
host without touching the network or the filesystem.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := a.newService(cfg, service.Options{})
			if err != nil {
				return err
			}
			m, err := svc.Manager(cmd.Context())
			if err != nil {
				return err
			}
			d, err := m.Descriptor()
			if err != nil {
				return err
			}
			return printDescriptor(cmd, d, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printDescriptor(cmd *cobra.Command, d *binary.Descriptor, jsonOutput bool) error {
	res := ResolveOutput{
		Platform:  d.Key.String(),
		Artifact:  d.Name,
		Version:   d.Version,
		URL:       d.URL,
		Archive:   d.ArchiveFileName,
		FinalPath: d.FinalPath,
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "platform\t%s\n", res.Platform)
	fmt.Fprintf(w, "artifact\t%s\n", res.Artifact)
	fmt.Fprintf(w, "version\t%s\n", res.Version)
	fmt.Fprintf(w, "url\t%s\n", res.URL)
	fmt.Fprintf(w, "path\t%s\n", res.FinalPath)
	return w.Flush()
}
