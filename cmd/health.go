package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/trunghafromvietnam/aegis-share/pkg/guardian"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that Aegis Core is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHealth(cmd.Context(), newGuardianClient(), cfg.API.BaseURL, cmd.OutOrStdout())
	},
}

func runHealth(ctx context.Context, client guardian.Client, baseURL string, out io.Writer) error {
	resp, err := client.Health(ctx)
	if err != nil {
		fmt.Fprintf(out, "Aegis Core disconnected (%s)\n", baseURL)
		return eris.Wrap(err, "health")
	}
	if !resp.OK {
		fmt.Fprintf(out, "Aegis Core is up but not ready (%s)\n", baseURL)
		return eris.New("health: core not ready")
	}
	fmt.Fprintf(out, "Aegis Core OK (%s)\n", baseURL)
	return nil
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
