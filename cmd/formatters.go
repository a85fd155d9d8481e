package cmd

import (
	"errors"
	"fmt"
	"strings"

	"orthrus/config"
	"orthrus/core"
)

// renderValidationReport displays the validation verdict for a document.
func renderValidationReport(path string, cfg *config.ServerConfig, err error) {
	if err == nil {
		successColor.Printf("✓ %s is valid\n", path)
		if !quiet {
			fmt.Printf("  Detection points: %d\n", len(cfg.DetectionPoints))
			fmt.Printf("  Correlation sets: %d\n", len(cfg.CorrelationSets))
		}
		return
	}

	errorColor.Printf("✗ %s is not valid\n", path)
	fmt.Printf("  Failure kind: %s\n", config.FailureKind(err))

	var schemaErr *config.SchemaError
	if errors.As(err, &schemaErr) {
		warningColor.Println("  Violations:")
		for _, v := range schemaErr.Violations {
			fmt.Printf("    - %s\n", v)
		}
		return
	}
	fmt.Printf("  %v\n", err)
}

// renderDetectionPointsTable displays detection points in a formatted table.
func renderDetectionPointsTable(cfg *config.ServerConfig) {
	if len(cfg.DetectionPoints) == 0 {
		warningColor.Println("No detection points configured")
		return
	}

	headerColor.Println("DETECTION POINTS")
	headerColor.Println(strings.Repeat("=", 80))
	fmt.Printf("%-14s %-10s %-16s %s\n", "ID", "Threshold", "Interval", "Responses")
	fmt.Println(strings.Repeat("-", 80))

	for _, dp := range cfg.DetectionPoints {
		fmt.Printf("%-14s %-10d %-16s %s\n",
			dp.ID,
			dp.Threshold.Count,
			dp.Threshold.Interval.String(),
			formatResponses(dp.Responses))
	}

	fmt.Println(strings.Repeat("=", 80))
}

// formatResponses renders a response list as "action(interval)" pairs. A
// response without an interval is not time-bounded and renders bare.
func formatResponses(responses []core.Response) string {
	if len(responses) == 0 {
		return "(none)"
	}

	parts := make([]string, 0, len(responses))
	for _, r := range responses {
		if r.Interval == (core.Interval{}) {
			parts = append(parts, r.Action)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", r.Action, r.Interval))
	}
	return strings.Join(parts, ", ")
}
