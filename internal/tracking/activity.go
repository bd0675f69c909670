package tracking

import (
	"regexp"
	"strings"
)

type ActivityType string

const (
	ActivityUnknown ActivityType = "unknown"
	ActivityStill   ActivityType = "still"
	ActivityOnFoot  ActivityType = "on_foot"
	ActivityWalking ActivityType = "walking"
	ActivityRunning ActivityType = "running"
	ActivityBicycle ActivityType = "on_bicycle"
	ActivityVehicle ActivityType = "in_vehicle"
	ActivityTilting ActivityType = "tilting"
)

var activityPatterns = []struct {
	re   *regexp.Regexp
	kind ActivityType
}{
	{regexp.MustCompile(`(?i)still|stationary`), ActivityStill},
	{regexp.MustCompile(`(?i)walk`), ActivityWalking},
	{regexp.MustCompile(`(?i)run`), ActivityRunning},
	{regexp.MustCompile(`(?i)foot`), ActivityOnFoot},
	{regexp.MustCompile(`(?i)bicycle|bike|cycl`), ActivityBicycle},
	{regexp.MustCompile(`(?i)vehicle|driv|automotive`), ActivityVehicle},
	{regexp.MustCompile(`(?i)tilt`), ActivityTilting},
}

// Activity is one classification from the device's activity recognizer.
type Activity struct {
	Type       ActivityType `json:"type"`
	Confidence int          `json:"confidence"`
}

// IsStill reports whether the classification is confident enough to run the stillness timer.
func (a Activity) IsStill() bool {
	return a.Type == ActivityStill && a.Confidence >= StillConfidence
}

func ParseActivityType(raw string) ActivityType {
	raw = strings.TrimSpace(raw)
	for _, p := range activityPatterns {
		if p.re.MatchString(raw) {
			return p.kind
		}
	}
	return ActivityUnknown
}
