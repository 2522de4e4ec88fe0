package messages

import "fmt"

// Specialty identifies the class of specialist a sub-request is routed to.
// It determines the destination request topic.
type Specialty string

const (
	MedicationAdvice Specialty = "medication_advice"
	SymptomCheck     Specialty = "symptom_check"
	InteractionCheck Specialty = "interaction_check"
	RejectionRisk    Specialty = "rejection_risk"
)

// Topic names follow the <specialty>-requests convention, with one shared
// topic for all responses. Each consumer group subscribes through the
// matching -sub subscription.
const (
	ResponseTopic        = "coordinator-responses"
	ResponseSubscription = "coordinator-responses-sub"
)

var requestTopics = map[Specialty]string{
	MedicationAdvice: "medication-requests",
	SymptomCheck:     "symptom-requests",
	InteractionCheck: "interaction-requests",
	RejectionRisk:    "rejection-requests",
}

// ParseSpecialty converts a wire string into a Specialty, rejecting values
// this module does not route.
func ParseSpecialty(s string) (Specialty, error) {
	sp := Specialty(s)
	if _, ok := requestTopics[sp]; !ok {
		return "", fmt.Errorf("unknown specialty %q", s)
	}
	return sp, nil
}

func (s Specialty) String() string { return string(s) }

// Valid reports whether the specialty is one this module routes.
func (s Specialty) Valid() bool {
	_, ok := requestTopics[s]
	return ok
}

// RequestTopic returns the topic sub-requests for this specialty are
// published to.
func (s Specialty) RequestTopic() string {
	return requestTopics[s]
}

// RequestSubscription returns the consumer-group subscription name workers of
// this specialty consume through.
func (s Specialty) RequestSubscription() string {
	return requestTopics[s] + "-sub"
}
