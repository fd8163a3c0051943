package conversation

import (
	"regexp"
	"strings"

	"github.com/wolfman30/agentx-dm-platform/internal/intent"
)

var lowEffortReplies = []string{
	"🙌",
	"Thanks! Let me know if you have any questions.",
	"👊",
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// neutralReply is the canned answer for LOW_EFFORT and PERSONAL messages.
// pick returns a value in [0, n).
func neutralReply(label intent.Intent, contactName string, pick func(n int) int) string {
	switch label {
	case intent.LowEffort:
		return lowEffortReplies[pick(len(lowEffortReplies))]
	case intent.Personal:
		if first := greetingName(contactName); first != "" {
			return "Hey " + first + "! What's up?"
		}
		return "Hey! What's up?"
	}
	return ""
}

// greetingName returns the first name when contactName looks like a person
// rather than a platform id or placeholder.
func greetingName(contactName string) string {
	name := strings.TrimSpace(contactName)
	if name == "" || digitsOnly.MatchString(name) || strings.Contains(name, "Unknown") {
		return ""
	}
	return strings.Fields(name)[0]
}
