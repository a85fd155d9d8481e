package core

import (
	"fmt"
	"time"
)

// Interval units understood by the analysis engines. Parsed configuration
// carries whatever unit string the document supplied; interpretation (and
// rejection of unknown units) happens in AsDuration, not during the parse.
const (
	UnitSeconds = "seconds"
	UnitMinutes = "minutes"
	UnitHours   = "hours"
	UnitDays    = "days"
)

// Interval is a span of time used by thresholds and responses: a positive
// duration count plus a unit string.
type Interval struct {
	Duration int    `json:"duration" yaml:"duration" validate:"gt=0"`
	Unit     string `json:"unit" yaml:"unit" validate:"required"`
}

// AsDuration interprets the interval as a time.Duration. Unknown units and
// non-positive durations are errors here so that a configuration carrying
// them fails at the point of use, never inside the parser.
func (i Interval) AsDuration() (time.Duration, error) {
	var base time.Duration
	switch i.Unit {
	case UnitSeconds:
		base = time.Second
	case UnitMinutes:
		base = time.Minute
	case UnitHours:
		base = time.Hour
	case UnitDays:
		base = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown interval unit %q", i.Unit)
	}
	if i.Duration <= 0 {
		return 0, fmt.Errorf("interval duration must be positive, got %d", i.Duration)
	}
	return time.Duration(i.Duration) * base, nil
}

// String renders the interval in a log-friendly form, e.g. "60 seconds".
func (i Interval) String() string {
	return fmt.Sprintf("%d %s", i.Duration, i.Unit)
}

// Threshold is the count-within-interval condition that promotes a detection
// point's events to an attack.
type Threshold struct {
	Count    int      `json:"count" yaml:"count" validate:"gt=0"`
	Interval Interval `json:"interval" yaml:"interval"`
}

// Response is one action configured for a detection point, taken when the
// point's threshold is exceeded. Action identifies the response behavior
// ("log", "logout", "disableUser", ...); Interval scopes how long the
// response stays in effect, with the zero Interval meaning the response is
// not time-bounded.
type Response struct {
	Action   string   `json:"action" yaml:"action" validate:"required"`
	Interval Interval `json:"interval" yaml:"interval" validate:"structonly"`
}

// DetectionPoint is one named rule that monitored applications report
// security events against.
type DetectionPoint struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	Threshold Threshold  `json:"threshold" yaml:"threshold"`
	Responses []Response `json:"responses,omitempty" yaml:"responses,omitempty" validate:"omitempty,dive"`
}

// CorrelationSet groups client application names whose events are analyzed
// together as if they came from a single source. An empty set is legal
// configuration, not a parse defect.
type CorrelationSet struct {
	ClientApplications []string `json:"client_applications" yaml:"client_applications"`
}

// Contains reports whether the set names the given client application.
func (s CorrelationSet) Contains(clientApplication string) bool {
	for _, name := range s.ClientApplications {
		if name == clientApplication {
			return true
		}
	}
	return false
}
