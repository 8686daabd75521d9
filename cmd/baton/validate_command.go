package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"baton/internal/schema"
	"baton/internal/stage"
)

type validateReport struct {
	Pair     string   `json:"pair"`
	Valid    bool     `json:"valid"`
	Size     int      `json:"size_bytes"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var pairFlag string
	var chain []string

	cmd := &cobra.Command{
		Use:   "validate <payload.json>",
		Short: "Check a handoff payload against its stage-pair contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := stage.ParsePair(pairFlag)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				var payload schema.Payload
				if err := rt.store.ReadJSON(cmd.Context(), args[0], &payload); err != nil {
					return err
				}
				result := schema.NewValidator(rt.cfg.Handoff.MaxPayloadBytes).Validate(payload, pair, chain)

				out := cmd.OutOrStdout()
				if ctx.wantJSON(out) {
					if err := writeJSON(cmd, validateReport{
						Pair:     pair.Label(),
						Valid:    result.Valid,
						Size:     result.Size,
						Errors:   result.Errors,
						Warnings: result.Warnings,
					}); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "%s payload (%d bytes): valid=%s\n", pair.Label(), result.Size, yesNo(result.Valid))
					for _, msg := range result.Errors {
						fmt.Fprintf(out, "  error: %s\n", msg)
					}
					for _, msg := range result.Warnings {
						fmt.Fprintf(out, "  warning: %s\n", msg)
					}
				}
				return result.Err()
			})
		},
	}

	cmd.Flags().StringVarP(&pairFlag, "pair", "p", "", "Stage pair, for example content->design")
	cmd.Flags().StringSliceVar(&chain, "chain", nil, "Handoff chain recorded so far (repeatable)")
	_ = cmd.MarkFlagRequired("pair")
	return cmd
}
