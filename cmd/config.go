// Package cmd provides command-line interface commands for Orthrus.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"orthrus/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for config commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

// NewConfigCmd creates the root config command with all subcommands.
func NewConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect server configuration documents",
		Long: `Inspect server configuration documents without running the daemon.

Commands read the document named on the command line, or the one the daemon
settings point at when no file is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	// Add persistent flags
	configCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	configCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	configCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	// Add subcommands
	configCmd.AddCommand(newValidateCmd())
	configCmd.AddCommand(newRenderCmd())
	configCmd.AddCommand(newDetectionPointsCmd())

	return configCmd
}

// documentPath resolves the document to inspect: the positional argument
// when given, otherwise the path the daemon settings name.
func documentPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	return settings.DocumentPath(), nil
}

// readDocument parses the resolved document. Semantic validation is left to
// the caller; render and detection-points work on any parseable document.
func readDocument(args []string) (*config.ServerConfig, string, error) {
	path, err := documentPath(args)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.NewReader().ReadFile(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// newValidateCmd creates the 'validate' subcommand
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration document",
		Long:  "Parse a configuration document and check it against the semantic constraints the engine requires.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := documentPath(args)
			if err != nil {
				return err
			}

			cfg, err := config.NewReader().ReadFile(path)
			if err == nil {
				err = cfg.Validate()
			}

			if outputJSON {
				if jsonErr := outputAsJSON(validationReport(path, err)); jsonErr != nil {
					return jsonErr
				}
			} else {
				renderValidationReport(path, cfg, err)
			}

			if err != nil {
				return fmt.Errorf("configuration document is not valid")
			}
			return nil
		},
	}
}

// newRenderCmd creates the 'render' subcommand
func newRenderCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Print the parsed configuration",
		Long:  "Parse a configuration document and print the resulting configuration graph as JSON or YAML.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := readDocument(args)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return outputAsJSON(cfg)
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to render configuration: %w", err)
				}
				fmt.Print(string(data))
				return nil
			default:
				return fmt.Errorf("unknown format %q (must be json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")

	return cmd
}

// newDetectionPointsCmd creates the 'detection-points' subcommand
func newDetectionPointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "detection-points [file]",
		Aliases: []string{"dp"},
		Short:   "List configured detection points",
		Long:    "Display a table of the document's detection points with their thresholds and responses.",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := readDocument(args)
			if err != nil {
				return err
			}

			if outputJSON {
				return outputAsJSON(cfg.DetectionPoints)
			}

			renderDetectionPointsTable(cfg)
			return nil
		},
	}
}

// report is the machine-readable validation verdict.
type report struct {
	Document   string   `json:"document"`
	Valid      bool     `json:"valid"`
	Kind       string   `json:"kind,omitempty"`
	Error      string   `json:"error,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// validationReport builds the machine-readable verdict for a document.
func validationReport(path string, err error) report {
	if err == nil {
		return report{Document: path, Valid: true}
	}

	r := report{
		Document: path,
		Kind:     config.FailureKind(err),
		Error:    err.Error(),
	}
	var schemaErr *config.SchemaError
	if errors.As(err, &schemaErr) {
		r.Violations = schemaErr.Violations
	}
	return r
}

// outputAsJSON outputs data as JSON to stdout.
func outputAsJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
