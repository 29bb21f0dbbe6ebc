package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/service"
)

// StatusOutput is the JSON form of the status command.
type StatusOutput struct {
	Platform      string     `json:"platform"`
	Artifact      string     `json:"artifact"`
	Path          string     `json:"path"`
	Cached        bool       `json:"cached"`
	ReceiptID     string     `json:"receipt_id,omitempty"`
	SHA256        string     `json:"sha256,omitempty"`
	Verified      string     `json:"verified,omitempty"`
	ProvisionedAt *time.Time `json:"provisioned_at,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the binding for this host is cached",
		Long: `Show the cache entry for this host and, when present, the receipt
written when it was provisioned. Nothing is downloaded.`,
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
			st, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}

			so := StatusOutput{
				Platform: st.Descriptor.Key.String(),
				Artifact: st.Descriptor.Name,
				Path:     st.Descriptor.FinalPath,
				Cached:   st.Cached,
			}
			if r := st.Receipt; r != nil {
				so.ReceiptID = r.ID
				so.SHA256 = r.SHA256
				so.Verified = r.Verified
				at := r.ProvisionedAt
				so.ProvisionedAt = &at
			}
			return printStatus(cmd, so, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, so StatusOutput, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(so)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "platform\t%s\n", so.Platform)
	fmt.Fprintf(w, "artifact\t%s\n", so.Artifact)
	fmt.Fprintf(w, "path\t%s\n", so.Path)
	if !so.Cached {
		fmt.Fprintf(w, "cached\tno (run 'skiacanvas ensure')\n")
		return w.Flush()
	}
	fmt.Fprintf(w, "cached\tyes\n")
	if so.ProvisionedAt != nil {
		fmt.Fprintf(w, "provisioned\t%s\n", so.ProvisionedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "sha256\t%s\n", so.SHA256)
		fmt.Fprintf(w, "verified\t%s\n", so.Verified)
	}
	return w.Flush()
}
