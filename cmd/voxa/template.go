package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/templates"
)

var (
	flagVars map[string]string
	flagSeed uint64
)

var templateCmd = &cobra.Command{
	Use:   "template [key]",
	Short: "Render a spoken response template, or list keys",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTemplate,
}

func init() {
	templateCmd.Flags().StringToStringVar(&flagVars, "var", nil, "Template variables, e.g. --var name=Dana,time=7pm")
	templateCmd.Flags().Uint64Var(&flagSeed, "seed", 0, "Seed variant selection for reproducible output")
	rootCmd.AddCommand(templateCmd)
}

func runTemplate(cmd *cobra.Command, args []string) error {
	var src templates.Source
	if cmd.Flags().Changed("seed") {
		src = templates.NewSeededSource(flagSeed)
	}
	picker := templates.NewPicker(nil, src)
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		fmt.Fprintln(out, strings.Join(picker.Keys(), "\n"))
		return nil
	}
	text, err := picker.Render(args[0], flagVars)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(out, map[string]string{"key": args[0], "text": text})
	}
	fmt.Fprintln(out, text)
	return nil
}
