package profile

import (
	"encoding/json"
	"fmt"
	"strings"
)

const unavailable = "User profile not available"

// FormatForPrompt renders a profile as the text block injected into the
// agent's system prompt. The user id comes first so the model uses it for
// tool calls.
func FormatForPrompt(p *Profile) string {
	if p == nil {
		return unavailable
	}

	var parts []string

	if p.UserID != "" {
		parts = append(parts, fmt.Sprintf("User ID (use this for all tool calls): %s", p.UserID))
	}
	if p.Name != "" {
		parts = append(parts, fmt.Sprintf("Name: %s", p.Name))
	}
	if p.Email != "" {
		parts = append(parts, fmt.Sprintf("Email: %s", p.Email))
	}
	if p.Address != "" {
		parts = append(parts, fmt.Sprintf("Address: %s", p.Address))
	}
	if p.Notes != "" {
		parts = append(parts, fmt.Sprintf("Notes: %s", p.Notes))
	}
	if p.Preferences != "" {
		// Normalize preferences to compact JSON when they parse
		var prefs any
		if err := json.Unmarshal([]byte(p.Preferences), &prefs); err == nil {
			if compact, err := json.Marshal(prefs); err == nil {
				parts = append(parts, fmt.Sprintf("Preferences: %s", compact))
			}
		} else {
			parts = append(parts, fmt.Sprintf("Preferences: %s", p.Preferences))
		}
	}
	if p.OnboardingCompleted {
		parts = append(parts, "Onboarding completed: true")
	}

	if len(parts) == 0 {
		return "Profile: Basic user profile available"
	}
	return "Profile: " + strings.Join(parts, "; ")
}
