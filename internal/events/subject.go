package events

import "strings"

// Headers set on every event published to NATS.
const (
	HeaderTopic      = "Lgates-Topic"
	HeaderInitiative = "Lgates-Initiative"
)

// scoped is implemented by payloads about a single initiative.
type scoped interface {
	initiative() string
}

// InitiativeOf returns the initiative an event payload concerns, or "" for
// portfolio-wide events such as role assignments.
func InitiativeOf(event any) string {
	if s, ok := event.(scoped); ok {
		return s.initiative()
	}
	return ""
}

// Subject is the NATS subject an event is published on. Initiative events
// carry the initiative as a trailing token, e.g.
// "lgates.form.approved.INIT-1".
func Subject(topic, initiativeID string) string {
	if initiativeID == "" {
		return topic
	}
	return topic + "." + subjectToken(initiativeID)
}

// InitiativeSubject matches every event about one initiative.
func InitiativeSubject(initiativeID string) string {
	return "lgates.*.*." + subjectToken(initiativeID)
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_")

// subjectToken makes id safe to use as a single subject token.
func subjectToken(id string) string {
	return tokenReplacer.Replace(id)
}
