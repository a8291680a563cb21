package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/segment"
)

var (
	flagMode     string
	flagFile     string
	flagMaxWords int
)

var segmentCmd = &cobra.Command{
	Use:   "segment [text | -]",
	Short: "Preview how a response would be segmented",
	RunE:  runSegment,
}

func init() {
	segmentCmd.Flags().StringVarP(&flagMode, "mode", "m", "full", "Response mode: brief or full")
	segmentCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Read text from a file")
	segmentCmd.Flags().IntVar(&flagMaxWords, "max-words", 0, "Override segmentation.max_words")
	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
	text, err := readText(args, flagFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	mode, err := segment.ParseMode(flagMode)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	seg := cfg.Segmentation
	if flagMaxWords > 0 {
		seg.MaxWords = flagMaxWords
	}
	res, err := segment.ProcessLongAudio(text, mode, seg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, res)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTitle(fmt.Sprintf("SEGMENTS  %s mode", mode)))
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderRow("Segments", formatCount(len(res.Segments))))
	fmt.Fprintln(out, renderRow("Words", formatCount(res.TotalWords())))
	fmt.Fprintln(out, renderRow("Estimated", fmt.Sprintf("%.1fs", res.TotalEstimatedSeconds)))
	fmt.Fprintln(out, renderRow("Segmented", fmt.Sprintf("%t", res.WasSegmented)))
	fmt.Fprintln(out, renderRow("Truncated", fmt.Sprintf("%t", res.WasTruncated)))
	fmt.Fprintln(out)
	for _, s := range res.Segments {
		fmt.Fprintf(out, "  #%d  %3d words  %5.1fs  %s\n", s.Index, s.WordCount, s.EstimatedSeconds, renderMuted(s.Hash[:12]))
		fmt.Fprintf(out, "      %s\n", preview(s.PlainText, 72))
	}
	switch {
	case res.DroppedWords > 0:
		fmt.Fprintln(os.Stderr, renderMuted(fmt.Sprintf("  %d words past the segment cap were dropped; raise --max-segments to keep them", res.DroppedWords)))
	case res.WasTruncated:
		fmt.Fprintln(os.Stderr, renderMuted("  brief mode truncated this response; use --mode full to keep all of it"))
	}
	return nil
}
