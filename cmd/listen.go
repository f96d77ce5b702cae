package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trunghafromvietnam/aegis-share/internal/device"
	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/report"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
)

var (
	listenFormat string
	listenLoop   bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Analyze a spoken debt-collection threat",
	Long:  "Reads one finalized utterance per line from stdin and submits it to the voice guardian.",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(listenFormat)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stderr := cmd.ErrOrStderr()
		env := initApp(newGuardianClient(), hostCaps{
			Recognizer: device.NewLineRecognizer(cmd.InOrStdin(), stderr),
			Synth:      device.NewConsoleSynthesizer(stderr),
			Haptics:    device.NewBell(stderr),
		}, model.ModalityVoice)
		defer env.Close()

		return runListen(ctx, env, format, listenLoop, cmd.OutOrStdout())
	},
}

// settled reports whether ev ends one listen round: a verdict, an error, or
// a capture that ended silently.
func settled(ev session.Event) bool {
	switch ev.Kind {
	case session.EventVerdictCommitted, session.EventErrorCommitted:
		return true
	case session.EventStatusChanged:
		return ev.Status == session.StatusIdle
	}
	return false
}

func runListen(ctx context.Context, env *appEnv, format report.Format, loop bool, out io.Writer) error {
	rounds := make(chan session.Event, 8)
	unsubscribe := env.Session.Subscribe(func(ev session.Event) {
		if settled(ev) {
			select {
			case rounds <- ev:
			default:
			}
		}
	})
	defer unsubscribe()

	for {
		for len(rounds) > 0 {
			<-rounds
		}

		if err := env.Voice.StartListening(ctx); err != nil {
			_ = report.Write(out, format, env.State())
			return err
		}

		var ev session.Event
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev = <-rounds:
		}

		if err := report.Write(out, format, env.State()); err != nil {
			return err
		}
		switch {
		case ev.Kind == session.EventErrorCommitted:
			return ev.Err
		case ev.Kind == session.EventStatusChanged:
			// Nothing was said.
			return nil
		case !loop:
			return nil
		}
	}
}

func init() {
	listenCmd.Flags().StringVarP(&listenFormat, "format", "f", "text", "output format: text, json or yaml")
	listenCmd.Flags().BoolVar(&listenLoop, "loop", false, "keep listening until an empty line or end of input")
	rootCmd.AddCommand(listenCmd)
}
