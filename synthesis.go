package consilium

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/consiliumlabs/consilium/messages"
)

// Priority classifies how quickly the caller should act on a synthesis.
type Priority string

const (
	PriorityEmergency   Priority = "emergency"
	PriorityUrgent      Priority = "urgent"
	PriorityRoutine     Priority = "routine"
	PriorityInformation Priority = "information"
)

// Synthesis status values.
const (
	SynthesisComplete       = "complete"
	SynthesisTimeoutPartial = "timeout_partial"
	SynthesisError          = "error"
)

// fallbackRecommendation is returned when no specialist answered at all. It
// must always be safe to show to an end user.
const fallbackRecommendation = "No responses received from specialist agents. " +
	"Unable to provide guidance - please contact your transplant team."

const timeoutWarning = "WARNING: Not all specialist agents responded within the timeout period. " +
	"This recommendation is based on partial information."

// Synthesis is the best-effort combined result built from whatever specialist
// responses were collected, regardless of completeness.
type Synthesis struct {
	Status            string
	Priority          Priority
	Recommendation    string
	AgentsConsulted   []string
	Recommendations   map[string]gjson.Result
	AvgProcessingTime float64
	TotalResponses    int
}

// The priority precedence table. Urgency outranks everything: one specialist
// flagging an emergency overrides any number of routine findings, regardless
// of arrival order. Matching is case-insensitive.
var (
	emergencyUrgencies = []string{"emergency", "critical"}
	urgentUrgencies    = []string{"urgent", "high"}
	urgentRiskLevels   = []string{"critical", "high"}
	urgentSeverities   = []string{"severe", "contraindicated"}
)

func synthesize(responses []messages.SpecialistResponse, complete, timedOut bool) Synthesis {
	if len(responses) == 0 {
		return Synthesis{
			Status:          SynthesisError,
			Priority:        PriorityInformation,
			Recommendation:  fallbackRecommendation,
			AgentsConsulted: []string{},
			Recommendations: map[string]gjson.Result{},
		}
	}

	status := SynthesisComplete
	if !complete {
		status = SynthesisTimeoutPartial
	}

	agents := make([]string, 0, len(responses))
	recommendations := make(map[string]gjson.Result, len(responses))
	var totalProcessing float64
	for _, resp := range responses {
		agents = append(agents, resp.Specialty.String())
		if resp.Status == messages.StatusSuccess {
			recommendations[resp.Specialty.String()] = resp.Result
		}
		totalProcessing += resp.ProcessingTime
	}

	return Synthesis{
		Status:            status,
		Priority:          derivePriority(responses),
		Recommendation:    buildRecommendation(responses, timedOut),
		AgentsConsulted:   agents,
		Recommendations:   recommendations,
		AvgProcessingTime: totalProcessing / float64(len(responses)),
		TotalResponses:    len(responses),
	}
}

// derivePriority scans every successful result through the precedence table
// and returns the highest class found. Error responses carry no priority
// signal.
func derivePriority(responses []messages.SpecialistResponse) Priority {
	if len(responses) == 0 {
		return PriorityInformation
	}

	priority := PriorityRoutine
	for _, resp := range responses {
		if resp.Status != messages.StatusSuccess {
			continue
		}

		urgency := strings.ToLower(resp.Result.Get("urgency").String())
		if slices.Contains(emergencyUrgencies, urgency) {
			return PriorityEmergency
		}
		if slices.Contains(urgentUrgencies, urgency) {
			priority = PriorityUrgent
			continue
		}

		riskLevel := strings.ToLower(resp.Result.Get("risk_level").String())
		severity := strings.ToLower(resp.Result.Get("severity").String())
		if slices.Contains(urgentRiskLevels, riskLevel) || slices.Contains(urgentSeverities, severity) {
			priority = PriorityUrgent
		}
	}
	return priority
}

// buildRecommendation assembles the user-facing text, one section per
// specialist, in arrival order.
func buildRecommendation(responses []messages.SpecialistResponse, timedOut bool) string {
	var parts []string

	if timedOut {
		parts = append(parts, timeoutWarning)
	}

	for _, resp := range responses {
		if resp.Status == messages.StatusError {
			parts = append(parts, fmt.Sprintf("\n**%s**: specialist failed: %s", resp.Specialty, resp.ErrorMessage))
			continue
		}

		result := resp.Result
		switch resp.Specialty {
		case messages.MedicationAdvice:
			parts = append(parts, fmt.Sprintf("\n**Medication Advisor** (Risk: %s):\n%s",
				valueOrUnknown(result, "risk_level"),
				result.Get("recommendation").String(),
			))

		case messages.SymptomCheck:
			var actions []string
			for _, action := range result.Get("actions").Array() {
				actions = append(actions, "- "+action.String())
			}
			parts = append(parts, fmt.Sprintf("\n**Symptom Monitor** (Urgency: %s):\n%s",
				valueOrUnknown(result, "urgency"),
				strings.Join(actions, "\n"),
			))

		case messages.InteractionCheck:
			parts = append(parts, fmt.Sprintf("\n**Drug Interaction Checker** (Severity: %s):\nInteraction detected: %t\n%s",
				valueOrUnknown(result, "severity"),
				result.Get("has_interaction").Bool(),
				result.Get("recommendation").String(),
			))

		case messages.RejectionRisk:
			parts = append(parts, fmt.Sprintf("\n**Rejection Risk** (Urgency: %s, probability: %.2f):\n%s",
				valueOrUnknown(result, "urgency"),
				result.Get("rejection_probability").Float(),
				result.Get("recommendation").String(),
			))

		default:
			parts = append(parts, fmt.Sprintf("\n**%s**:\n%s", resp.Specialty, result.Raw))
		}
	}

	return strings.Join(parts, "\n")
}

func valueOrUnknown(result gjson.Result, path string) string {
	if v := result.Get(path); v.Exists() {
		return v.String()
	}
	return "unknown"
}
