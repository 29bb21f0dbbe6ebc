package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/fonts"
)

// FontOutput is one resolved font file in the JSON output.
type FontOutput struct {
	Alias  string `json:"alias"`
	Family string `json:"family"`
	Path   string `json:"path"`
	Fonts  int    `json:"fonts"`
}

func newFontsCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "Check the configured font aliases",
		Long: `Parse every file listed in font_aliases and show the family each
one provides. Exits non-zero when a file is missing or unreadable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(cfg.FontAliases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no font aliases configured")
				return nil
			}

			registry := fonts.NewRegistry(cfg.FontsPath, cfg.FontAliases, a.log())
			faces, resolveErr := registry.Resolve(cmd.Context())
			if faces == nil {
				return resolveErr
			}

			var rows []FontOutput
			for _, alias := range registry.Aliases() {
				for _, f := range faces[alias] {
					rows = append(rows, FontOutput{Alias: alias, Family: f.Family, Path: f.Path, Fonts: f.Fonts})
				}
			}

			if err := printFonts(cmd, rows, jsonOutput); err != nil {
				return err
			}
			return resolveErr
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printFonts(cmd *cobra.Command, rows []FontOutput, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tFAMILY\tFILE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Alias, r.Family, r.Path)
	}
	return w.Flush()
}
