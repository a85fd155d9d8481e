package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"orthrus/core"
)

// ServerConfig is the root of the parsed configuration graph: the engine's
// identity header, correlation sets, component implementation identifiers,
// observer lists, and the detection point catalog. The reader fills it
// permissively; Validate decides whether it is fit to run an engine.
type ServerConfig struct {
	// ClientApplicationIdentificationHeaderName is the HTTP header carrying
	// the reporting client's identity. Optional.
	ClientApplicationIdentificationHeaderName string `json:"client_application_identification_header_name,omitempty" yaml:"client_application_identification_header_name,omitempty"`

	// CorrelationSets groups client applications whose events are analyzed
	// together, in document order
	CorrelationSets []core.CorrelationSet `json:"correlation_sets,omitempty" yaml:"correlation_sets,omitempty"`

	// Component implementation identifiers, resolved against the registry
	// at bootstrap. Logger is optional; the rest are required.
	EventAnalyzer    string `json:"event_analyzer" yaml:"event_analyzer" validate:"required"`
	AttackAnalyzer   string `json:"attack_analyzer" yaml:"attack_analyzer" validate:"required"`
	ResponseAnalyzer string `json:"response_analyzer" yaml:"response_analyzer" validate:"required"`
	EventStore       string `json:"event_store" yaml:"event_store" validate:"required"`
	AttackStore      string `json:"attack_store" yaml:"attack_store" validate:"required"`
	ResponseStore    string `json:"response_store" yaml:"response_store" validate:"required"`
	Logger           string `json:"logger,omitempty" yaml:"logger,omitempty"`
	ResponseHandler  string `json:"response_handler" yaml:"response_handler" validate:"required"`

	// Observer identifier lists attached to the matching store at bootstrap
	EventStoreObservers    []string `json:"event_store_observers,omitempty" yaml:"event_store_observers,omitempty"`
	AttackStoreObservers   []string `json:"attack_store_observers,omitempty" yaml:"attack_store_observers,omitempty"`
	ResponseStoreObservers []string `json:"response_store_observers,omitempty" yaml:"response_store_observers,omitempty"`

	// DetectionPoints is the detection point catalog, in document order
	DetectionPoints []core.DetectionPoint `json:"detection_points" yaml:"detection_points" validate:"required,dive"`
}

// DetectionPoint returns the detection point with the given identifier.
func (c *ServerConfig) DetectionPoint(id string) (core.DetectionPoint, bool) {
	for _, dp := range c.DetectionPoints {
		if dp.ID == id {
			return dp, true
		}
	}
	return core.DetectionPoint{}, false
}

// CorrelatedClients returns the full membership of the first correlation set
// containing the given client application, or nil when the client is not
// correlated with anyone.
func (c *ServerConfig) CorrelatedClients(clientApplication string) []string {
	for _, set := range c.CorrelationSets {
		if set.Contains(clientApplication) {
			return set.ClientApplications
		}
	}
	return nil
}

// Validate checks the parsed configuration against the constraints the
// reader deliberately does not enforce. All violations are collected into a
// single SchemaError so an operator sees every problem at once.
func (c *ServerConfig) Validate() error {
	var violations []string

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate server configuration: %w", err)
		}
		for _, fe := range fieldErrs {
			violations = append(violations, fmt.Sprintf("%s failed %q constraint", fe.Namespace(), fe.Tag()))
		}
	}

	seen := make(map[string]bool, len(c.DetectionPoints))
	for _, dp := range c.DetectionPoints {
		if dp.ID == "" {
			continue
		}
		if seen[dp.ID] {
			violations = append(violations, fmt.Sprintf("duplicate detection point id %q", dp.ID))
		}
		seen[dp.ID] = true
	}

	for _, dp := range c.DetectionPoints {
		if _, err := dp.Threshold.Interval.AsDuration(); err != nil {
			violations = append(violations, fmt.Sprintf("detection point %q threshold: %v", dp.ID, err))
		}
		for i, resp := range dp.Responses {
			if resp.Interval == (core.Interval{}) {
				// no interval, response is not time-bounded
				continue
			}
			if _, err := resp.Interval.AsDuration(); err != nil {
				violations = append(violations, fmt.Sprintf("detection point %q response %d: %v", dp.ID, i, err))
			}
		}
	}

	if len(violations) > 0 {
		return &SchemaError{Violations: violations}
	}
	return nil
}
