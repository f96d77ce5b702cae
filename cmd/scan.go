package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trunghafromvietnam/aegis-share/internal/capture"
	"github.com/trunghafromvietnam/aegis-share/internal/device"
	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/report"
)

var (
	scanFormat string
	scanExport bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Analyze a loan offer screenshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(scanFormat)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stderr := cmd.ErrOrStderr()
		env := initApp(newGuardianClient(), hostCaps{
			Synth:   device.NewConsoleSynthesizer(stderr),
			Haptics: device.NewBell(stderr),
		}, model.ModalityImage)
		defer env.Close()

		return runScan(ctx, env, args[0], format, scanExport, cmd.OutOrStdout())
	},
}

// runScan submits one image and prints the resulting state. The analysis
// error, if any, is returned after the state is printed.
func runScan(ctx context.Context, env *appEnv, path string, format report.Format, exportCard bool, out io.Writer) error {
	f, err := capture.ReadFile(path)
	if err != nil {
		return err
	}
	if err := env.Images.Select(f); err != nil {
		return err
	}

	_, analyzeErr := env.Session.Analyze(ctx)
	if analyzeErr == nil && exportCard {
		if _, err := env.Session.ExportCard(ctx); err != nil {
			zap.L().Warn("scan: card export failed", zap.Error(err))
		}
	}

	st := env.State()
	if err := report.Write(out, format, st); err != nil {
		return err
	}
	if format == report.FormatText && st.ExportedURL != "" {
		fmt.Fprintf(out, "\nSafety card saved to %s\n", filepath.Join(cfg.Export.Dir, cfg.Export.Filename))
	}
	return analyzeErr
}

func init() {
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "text", "output format: text, json or yaml")
	scanCmd.Flags().BoolVar(&scanExport, "export", false, "save a shareable safety card after a verdict")
	rootCmd.AddCommand(scanCmd)
}
