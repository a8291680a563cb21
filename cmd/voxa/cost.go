package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harunnryd/voxa/pkg/cost"
)

var (
	flagProfileFile string
	flagUsers       int
	flagChars       float64
	flagWords       float64
	flagRequests    float64
	flagCacheRate   float64
	flagBatchRate   float64
	flagSegRate     float64
	flagAvgSegments float64
	flagProviders   map[string]string
	flagModes       map[string]string
	flagDays        int
	flagEstimate    bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate TTS cost for a usage profile",
	RunE:  runEstimate,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare baseline, caching, batching and combined scenarios",
	RunE:  runCompare,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarize actual spend from the generation log",
	RunE:  runHistory,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Infer a usage profile from the generation log",
	RunE:  runProfile,
}

func addProfileFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&flagProfileFile, "profile", "p", "", "Usage profile file (yaml or json); flags override it")
	f.IntVarP(&flagUsers, "users", "u", 0, "Monthly active users (defaults to cost.monthly_users)")
	f.Float64Var(&flagChars, "chars", 0, "Average response length in characters")
	f.Float64Var(&flagWords, "words", 0, "Average response length in words, used when --chars is unset")
	f.Float64Var(&flagRequests, "requests", 0, "Requests per session")
	f.Float64Var(&flagCacheRate, "cache-rate", 0, "Cache hit rate in [0,1]")
	f.Float64Var(&flagBatchRate, "batch-rate", 0, "Share of requests batched in [0,1]")
	f.Float64Var(&flagSegRate, "segment-rate", 0, "Share of responses that are segmented in [0,1]")
	f.Float64Var(&flagAvgSegments, "avg-segments", 0, "Average segments per segmented response")
	f.StringToStringVar(&flagProviders, "provider", nil, "Provider share, e.g. --provider elevenlabs=0.7,openai=0.3")
	f.StringToStringVar(&flagModes, "mode-share", nil, "Mode share, e.g. --mode-share brief=0.6,full=0.4")
}

func init() {
	addProfileFlags(estimateCmd)
	addProfileFlags(compareCmd)
	historyCmd.Flags().IntVarP(&flagDays, "days", "n", 30, "Time window in days")
	profileCmd.Flags().IntVarP(&flagDays, "days", "n", 30, "Time window in days")
	profileCmd.Flags().BoolVar(&flagEstimate, "estimate", false, "Also estimate monthly cost for the inferred profile")
	profileCmd.Flags().IntVarP(&flagUsers, "users", "u", 0, "Monthly active users for --estimate")
	rootCmd.AddCommand(estimateCmd, compareCmd, historyCmd, profileCmd)
}

func parseShares(flag string, in map[string]string) (map[string]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("--%s %s: %w", flag, k, err)
		}
		out[strings.ToLower(strings.TrimSpace(k))] = f
	}
	return out, nil
}

// buildProfile reads --profile, then applies every flag the user set.
func buildProfile(cmd *cobra.Command) (cost.UsageProfile, error) {
	var p cost.UsageProfile
	if flagProfileFile != "" {
		v := viper.New()
		v.SetConfigFile(flagProfileFile)
		if err := v.ReadInConfig(); err != nil {
			return p, fmt.Errorf("read profile: %w", err)
		}
		if err := v.Unmarshal(&p); err != nil {
			return p, fmt.Errorf("decode profile: %w", err)
		}
	}
	f := cmd.Flags()
	set := func(name string, dst *float64, val float64) {
		if f.Changed(name) {
			*dst = val
		}
	}
	set("chars", &p.AvgTextLengthChars, flagChars)
	set("words", &p.AvgTextLengthWords, flagWords)
	set("requests", &p.RequestsPerSession, flagRequests)
	set("cache-rate", &p.CacheHitRate, flagCacheRate)
	set("batch-rate", &p.BatchingRate, flagBatchRate)
	set("segment-rate", &p.SegmentationRate, flagSegRate)
	set("avg-segments", &p.AvgSegmentsPerLongResponse, flagAvgSegments)

	providers, err := parseShares("provider", flagProviders)
	if err != nil {
		return p, err
	}
	if providers != nil {
		p.ProviderDistribution = providers
	}
	modes, err := parseShares("mode-share", flagModes)
	if err != nil {
		return p, err
	}
	if modes != nil {
		p.ModeDistribution = modes
	}
	return p, nil
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	profile, err := buildProfile(cmd)
	if err != nil {
		return err
	}
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	est, err := engine.Estimate(profile, flagUsers)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, est)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTitle(fmt.Sprintf("COST ESTIMATE  %s users", formatCount(est.MonthlyUsers))))
	fmt.Fprint(out, cost.GenerateCostReport(est))
	return nil
}

func runCompare(cmd *cobra.Command, _ []string) error {
	profile, err := buildProfile(cmd)
	if err != nil {
		return err
	}
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	cmp, err := engine.Compare(profile, flagUsers)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, cmp)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTitle("SCENARIO COMPARISON"))
	fmt.Fprint(out, cost.GenerateComparisonReport(cmp))
	return nil
}

func window() (time.Time, time.Time) {
	end := time.Now()
	return end.AddDate(0, 0, -flagDays), end
}

func runHistory(cmd *cobra.Command, _ []string) error {
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	start, end := window()
	summary, err := engine.History(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTitle(fmt.Sprintf("TTS SPEND  Last %dd", flagDays)))
	fmt.Fprint(out, cost.GenerateHistoryReport(summary))
	return nil
}

func runProfile(cmd *cobra.Command, _ []string) error {
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	start, end := window()
	profile, err := engine.Profile(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !flagEstimate {
		return writeJSON(out, profile)
	}
	est, err := engine.Estimate(profile, flagUsers)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(out, map[string]any{"profile": profile, "estimate": est})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTitle(fmt.Sprintf("INFERRED PROFILE  Last %dd", flagDays)))
	fmt.Fprintln(out, renderRow("Avg chars", fmt.Sprintf("%.0f", profile.AvgTextLengthChars)))
	fmt.Fprintln(out, renderRow("Requests/session", fmt.Sprintf("%.1f", profile.RequestsPerSession)))
	fmt.Fprintln(out, renderRow("Cache hit rate", fmt.Sprintf("%.1f%%", profile.CacheHitRate*100)))
	fmt.Fprintln(out, renderRow("Segmented", fmt.Sprintf("%.1f%%", profile.SegmentationRate*100)))
	fmt.Fprint(out, cost.GenerateCostReport(est))
	return nil
}
