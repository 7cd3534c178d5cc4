package answer

import (
	"strings"

	"emergency-rag/internal/models"
)

// Intent gate: queries asking how to damage a vehicle get a fixed
// safety redirect instead of retrieval output.
var (
	harmfulVerbs = []string{
		"make", "cause", "damage", "break",
		"puncture", "sabotage", "destroy",
	}
	vehicleTargets = []string{
		"tyre", "tire", "engine", "battery",
		"vehicle", "car",
	}
)

// IsMalicious reports whether the query pairs a harmful verb with a
// vehicle target.
func IsMalicious(query string) bool {
	q := strings.ToLower(query)
	verb := false
	for _, v := range harmfulVerbs {
		if strings.Contains(q, v) {
			verb = true
			break
		}
	}
	if !verb {
		return false
	}
	for _, t := range vehicleTargets {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// SafetyRedirect is the fixed answer for malicious queries. No sources:
// nothing here comes from retrieval.
func SafetyRedirect(query string) *models.Answer {
	return &models.Answer{
		Query: query,
		Steps: []string{
			"I can't help with damaging a vehicle.",
			"If you are dealing with a flat tyre unexpectedly, follow these safe steps:",
			"Reduce speed gradually and avoid sudden braking.",
			"Move the vehicle to a safe place away from traffic.",
			"Switch on the hazard warning flasher.",
			"Inspect the tyre only after the vehicle is safely stopped.",
		},
		Warnings: []string{
			"Intentionally damaging a vehicle can be dangerous and illegal.",
		},
		Tools:      []string{},
		Sources:    []models.Source{},
		Disclaimer: "This assistant provides safety guidance based on vehicle manuals. It does not support harmful or illegal actions.",
	}
}
