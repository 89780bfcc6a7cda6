package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nathoo/petcore/loader"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <game>",
		Short: "Check game data without running it",
		Long: `Compile and validate a game: a directory of .lua files or a .yaml
game document. Warnings are printed but do not fail the check.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loader.LoadDocument(args[0])
			if err != nil {
				return err
			}
			defs, err := loader.Compile(doc)
			if err != nil {
				return fmt.Errorf("compiling game data: %w", err)
			}
			warnings, err := loader.Validate(defs)
			for _, w := range warnings {
				cmd.Printf("warning: %s\n", w)
			}
			var ve *loader.ValidationError
			if errors.As(err, &ve) {
				for _, e := range ve.Errors {
					cmd.Printf("error: %s\n", e)
				}
				return fmt.Errorf("%s: %d error(s)", args[0], len(ve.Errors))
			}
			if err != nil {
				return err
			}
			cmd.Printf("OK: %s v%s (%d characters, %d battlers, %d mappings)\n",
				defs.Game.Title, defs.Game.Version,
				len(defs.Characters), len(defs.Battlers), len(defs.Mappings))
			return nil
		},
	}
}
