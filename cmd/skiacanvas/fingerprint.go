package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// FingerprintOutput is the JSON form of the fingerprint command.
type FingerprintOutput struct {
	Key          string `json:"key"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	Libc         string `json:"libc,omitempty"`
	Distribution string `json:"distribution,omitempty"`
	Family       string `json:"family,omitempty"`
	DistroVer    string `json:"distribution_version,omitempty"`
	Glibc        string `json:"glibc,omitempty"`
}

func newFingerprintCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Show the platform key of this host",
		Long: `Show the operating system, architecture and C library this host
reports, in the naming used by the prebuilt bindings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, report := a.host(cmd.Context())
			fp := FingerprintOutput{Key: key.String(), OS: key.OS, Arch: key.Arch, Libc: key.Libc}
			if report != nil {
				fp.Distribution = report.Platform
				fp.Family = report.Family
				fp.DistroVer = report.Version
				fp.Glibc = report.GlibcVersionRuntime
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(fp)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "key\t%s\n", fp.Key)
			fmt.Fprintf(w, "os\t%s\n", fp.OS)
			fmt.Fprintf(w, "arch\t%s\n", fp.Arch)
			if fp.Libc != "" {
				fmt.Fprintf(w, "libc\t%s\n", fp.Libc)
			}
			if fp.Distribution != "" {
				fmt.Fprintf(w, "distribution\t%s %s (%s)\n", fp.Distribution, fp.DistroVer, fp.Family)
			}
			if fp.Glibc != "" {
				fmt.Fprintf(w, "glibc\t%s\n", fp.Glibc)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
