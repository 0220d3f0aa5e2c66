package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parallelhq/parallel/internal/app"
	"github.com/parallelhq/parallel/internal/model"
)

func newMorphsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "morphs",
		Short: "Generate appearance morphs",
	}
	cmd.AddCommand(newMorphsGenerateCommand(ctx))
	return cmd
}

func newMorphsGenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <analysis-id>",
		Short: "Generate all morph variants and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				set, err := a.MorphService.Generate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, set)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Morph set %s: %s\n", set.ID, set.Status)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Variant", "URL", "Error"},
					morphRows(set),
					nil,
				))
				return nil
			})
		},
	}
}

func morphRows(set *model.MorphSet) [][]string {
	variants := []struct {
		name string
		url  *string
		err  string
	}{
		{model.MorphVariantOverall, set.OverallURL, set.OverallError},
		{model.MorphVariantEyes, set.EyesURL, set.EyesError},
		{model.MorphVariantSkin, set.SkinURL, set.SkinError},
		{model.MorphVariantJawline, set.JawlineURL, set.JawlineError},
	}

	rows := make([][]string, 0, len(variants))
	for _, v := range variants {
		errText := v.err
		if errText == "" {
			errText = "-"
		}
		rows = append(rows, []string{v.name, valueOr(v.url, "-"), errText})
	}
	return rows
}
