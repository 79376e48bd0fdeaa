// Package wellness holds the wellness score and the burnout risk derived from it.
package wellness

// RiskLevel is the burnout risk category shown next to the wellness score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

const (
	lowRiskAbove    = 75
	mediumRiskAbove = 60
)

// RiskFor maps a score onto its risk level: above 75 is Low, above 60 is Medium,
// everything else is High.
func RiskFor(score int) RiskLevel {
	switch {
	case score > lowRiskAbove:
		return RiskLow
	case score > mediumRiskAbove:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Bounds is the closed interval a score is kept within.
type Bounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DefaultBounds keeps the random walk between 60 and 90.
var DefaultBounds = Bounds{Min: 60, Max: 90}

// Clamp pins score into b.
func (b Bounds) Clamp(score int) int {
	if score < b.Min {
		return b.Min
	}
	if score > b.Max {
		return b.Max
	}
	return score
}

// Contains reports whether score lies inside b.
func (b Bounds) Contains(score int) bool {
	return score >= b.Min && score <= b.Max
}

// Alert nudges the employee towards HR support once risk is no longer Low.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

var wellnessAlert = Alert{
	Title:   "Wellness Alert",
	Message: "Consider scheduling a break or talking to HR about workload management.",
	Action:  "Schedule Wellness Session",
}

// Metrics is the read model for the wellness sidebar.
type Metrics struct {
	Score int       `json:"score"`
	Risk  RiskLevel `json:"risk"`
	Alert *Alert    `json:"alert,omitempty"`
}

// NewMetrics derives risk and alert from score.
func NewMetrics(score int) Metrics {
	m := Metrics{Score: score, Risk: RiskFor(score)}
	if m.Risk != RiskLow {
		alert := wellnessAlert
		m.Alert = &alert
	}
	return m
}
