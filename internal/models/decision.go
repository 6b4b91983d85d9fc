// internal/models/decision.go
package models

// AutomationLevel is how much human involvement a recommendation
// requires before dispatch.
type AutomationLevel string

const (
	AutomationAuto     AutomationLevel = "auto"
	AutomationAdvisory AutomationLevel = "advisory"
	AutomationManual   AutomationLevel = "manual"
)

// ValidAutomationLevel reports whether l is a known level.
func ValidAutomationLevel(l AutomationLevel) bool {
	switch l {
	case AutomationAuto, AutomationAdvisory, AutomationManual:
		return true
	}
	return false
}

// FlagSeverity grades a review flag.
type FlagSeverity string

const (
	SeverityLow    FlagSeverity = "low"
	SeverityMedium FlagSeverity = "medium"
	SeverityHigh   FlagSeverity = "high"
)

// ReviewFlag is a structured reason a recommendation may need human review.
type ReviewFlag struct {
	Type     string       `json:"type"`
	Severity FlagSeverity `json:"severity"`
	Message  string       `json:"message"`
}

// AutomationDecision is the routing outcome for a ranked recommendation:
// whether the top pick can be auto-dispatched or must go through a human.
type AutomationDecision struct {
	Level                 AutomationLevel `json:"automationLevel"`
	ConfidenceThreshold   float64         `json:"confidenceThreshold"`
	Reason                string          `json:"reason"`
	RequiresHumanApproval bool            `json:"requiresHumanApproval"`
	Flags                 []ReviewFlag    `json:"reviewFlags,omitempty"`
	Escalated             bool            `json:"escalated"`
}
