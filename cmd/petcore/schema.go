package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nathoo/petcore/loader"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of YAML game documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := loader.GenerateSchema()
			if err != nil {
				return err
			}
			if outPath == "" {
				cmd.Println(string(schema))
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, schema, 0o600); err != nil {
				return err
			}
			cmd.Printf("Generated %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the schema to this file")
	return cmd
}
