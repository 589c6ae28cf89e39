package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kolkov/monitortrace/agent"
)

var (
	versionColor = color.New(color.FgGreen, color.Bold)
	schemaColor  = color.New(color.FgCyan)
)

type versionPayload struct {
	Tool    string `json:"tool"`
	Version string `json:"version"`
	Major   string `json:"major"`
	Schema  string `json:"schema"`
}

func newVersionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show agent version and record schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := agent.GetInfo()
			switch strings.ToLower(format) {
			case "pretty":
				renderVersionPretty(cmd.OutOrStdout(), info)
				return nil
			case "json":
				return renderVersionJSON(cmd.OutOrStdout(), info)
			default:
				return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "pretty", "output format (pretty|json)")
	return cmd
}

func renderVersionPretty(out io.Writer, info agent.Info) {
	fmt.Fprintf(out, "monitortrace %s\n", versionColor.Sprint(info.Version))
	fmt.Fprintf(out, "records: %s\n", schemaColor.Sprint(info.Schema))
}

func renderVersionJSON(out io.Writer, info agent.Info) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(versionPayload{
		Tool:    "monitortrace",
		Version: info.Version,
		Major:   info.Major,
		Schema:  info.Schema,
	})
}
