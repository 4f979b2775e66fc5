package main

import (
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/scripthost/application/schema"
	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/reglet-dev/scripthost/host"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// describeOutput is what describe prints.
type describeOutput struct {
	Surface   entities.Surface        `json:"surface" yaml:"surface"`
	Operators []entities.OperatorSpec `json:"operators" yaml:"operators"`
}

func newDescribeCmd(a *app) *cobra.Command {
	var (
		format   string
		asSchema bool
	)
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the registered capability surface",
		Long: `Print every capability a script can reach with the current configuration,
with its qualified path, kind and visibility, followed by the infix
operators the parser knows. --schema prints the JSON schema of the
surface document instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "json" && format != "yaml" {
				err := domainerrors.NewConfigError("format", "unknown format %q, want json or yaml", format)
				return &ExitError{Err: err, Code: host.ExitCode(err)}
			}
			if asSchema {
				raw, err := schema.GenerateSchema(entities.Surface{})
				if err != nil {
					return &ExitError{Err: err, Code: 1}
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			}
			return a.withHost(cmd.Context(), func(h *host.Host) error {
				out := describeOutput{Surface: h.Surface(), Operators: h.Operators()}
				return writeDocument(cmd, format, out)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&asSchema, "schema", false, "print the JSON schema of the surface")
	return cmd
}

func writeDocument(cmd *cobra.Command, format string, doc any) error {
	w := cmd.OutOrStdout()
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
