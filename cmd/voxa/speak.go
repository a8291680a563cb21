package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/dispatch"
	"github.com/harunnryd/voxa/pkg/segment"
)

var (
	flagVoice    string
	flagProvider string
	flagSession  string
	flagNoSSML   bool
)

var speakCmd = &cobra.Command{
	Use:   "speak [text | -]",
	Short: "Segment a response and synthesize every segment",
	RunE:  runSpeak,
}

func init() {
	speakCmd.Flags().StringVarP(&flagMode, "mode", "m", "full", "Response mode: brief or full")
	speakCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Read text from a file")
	speakCmd.Flags().StringVar(&flagVoice, "voice", "", "Voice name (defaults to providers.default_voice)")
	speakCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to route to (defaults to providers.default)")
	speakCmd.Flags().StringVar(&flagSession, "session", "", "Session ID recorded in the generation log")
	speakCmd.Flags().BoolVar(&flagNoSSML, "no-ssml-fallback", false, "Fail instead of retrying SSML segments as plain text")
	rootCmd.AddCommand(speakCmd)
}

func runSpeak(cmd *cobra.Command, args []string) error {
	text, err := readText(args, flagFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	mode, err := segment.ParseMode(flagMode)
	if err != nil {
		return err
	}
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := flagSession
	if session == "" {
		session = uuid.NewString()
	}
	req := dispatch.LongAudioRequest{
		Text:      text,
		Mode:      mode,
		Voice:     flagVoice,
		Provider:  flagProvider,
		SessionID: session,
	}
	if flagNoSSML {
		off := false
		req.SSMLFallback = &off
	}
	out, err := engine.GenerateLongAudio(ctx, req)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(w, out)
	}
	cached := 0
	for _, r := range out.Results {
		if r.Cached {
			cached++
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTitle("SPEAK"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderRow("Session", session))
	fmt.Fprintln(w, renderRow("Segments", formatCount(len(out.AudioURLs))))
	fmt.Fprintln(w, renderRow("Cached", formatCount(cached)))
	fmt.Fprintln(w, renderRow("Words", formatCount(out.Metadata.TotalWords)))
	fmt.Fprintln(w, renderRow("Estimated", fmt.Sprintf("%.1fs", out.Metadata.TotalEstimatedSeconds)))
	fmt.Fprintln(w)
	for _, r := range out.Results {
		tag := ""
		if r.Cached {
			tag = renderMuted(" (cached)")
		}
		fmt.Fprintf(w, "  #%d  %s%s\n", r.Segment.Index, r.AudioURL, tag)
	}
	return nil
}
