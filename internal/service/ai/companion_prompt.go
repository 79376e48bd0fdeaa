package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/pulse-hr/backend/internal/analysis/emotion"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
)

var companionRules = []string{
	"Reply in at most three sentences.",
	"Never diagnose; suggest talking to HR or a professional when distress is serious.",
	"Do not invent company policies. Refer to \"our wellness programs\" generically.",
	"Match the employee's language.",
}

// BuildSystemPrompt renders the system prompt for a companion. mood is the tag of the
// message being answered and may be empty.
func BuildSystemPrompt(profile companion.Companion, mood emotion.Label) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an HR wellness companion (%s). ", profile.Name, profile.Tagline)
	fmt.Fprintf(&b, "Tone: %s.\n", profile.Tone)
	if profile.PromptHint != "" {
		b.WriteString(profile.PromptHint)
		b.WriteString("\n")
	}
	if len(profile.Focus) > 0 {
		fmt.Fprintf(&b, "Topics you steer towards: %s.\n", strings.Join(profile.Focus, ", "))
	}
	b.WriteString("Rules:\n- ")
	b.WriteString(strings.Join(companionRules, "\n- "))

	if desc := describeMood(mood); desc != "" {
		b.WriteString("\n\nMood of the latest message: ")
		b.WriteString(desc)
	}
	return b.String()
}

func describeMood(label emotion.Label) string {
	switch label {
	case emotion.Positive:
		return "upbeat. Reinforce it and remind them to keep healthy habits."
	case emotion.Stressed:
		return "stressed. Acknowledge the pressure and offer one stress-management tip."
	case emotion.Tired:
		return "tired. Encourage rest and a short break."
	case emotion.Frustrated:
		return "frustrated. Stay calm, validate the feeling, and avoid platitudes."
	case emotion.Anxious:
		return "anxious. Be reassuring and concrete."
	case emotion.Low:
		return "low. Be gentle and mention that support is available."
	default:
		return ""
	}
}
