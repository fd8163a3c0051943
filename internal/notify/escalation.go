package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/agentx-dm-platform/internal/conversation"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// EscalationNotifier e-mails a coach when a DM shows buying intent.
type EscalationNotifier struct {
	email  EmailSender
	logger *logging.Logger
}

func NewEscalationNotifier(email EmailSender, logger *logging.Logger) *EscalationNotifier {
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationNotifier{email: email, logger: logger}
}

// NotifySalesIntent sends the escalation e-mail. Coaches without an
// escalation address are skipped.
func (n *EscalationNotifier) NotifySalesIntent(ctx context.Context, e conversation.Escalation) error {
	if e.Coach == nil || strings.TrimSpace(e.Coach.EscalationEmail) == "" {
		return nil
	}

	who := e.ContactName
	if strings.TrimSpace(who) == "" || strings.HasPrefix(who, "Unknown_User_") {
		who = e.UserHandle
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s looks ready to buy.\n\n", who)
	fmt.Fprintf(&body, "Handle: %s\n", e.UserHandle)
	if e.Source != "" {
		fmt.Fprintf(&body, "Channel: %s\n", e.Source)
	}
	fmt.Fprintf(&body, "\nTheir message:\n%s\n", e.Message)
	if e.Reply != "" {
		fmt.Fprintf(&body, "\nWhat we replied:\n%s\n", e.Reply)
	}
	body.WriteString("\nJump into the conversation if you want to close it personally.")

	msg := EmailMessage{
		To:      e.Coach.EscalationEmail,
		ToName:  e.Coach.DisplayName(),
		Subject: fmt.Sprintf("Buyer intent from %s", who),
		Body:    body.String(),
	}
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: escalation email: %w", err)
	}
	n.logger.Info("escalation sent", "coach_id", e.Coach.ID, "user_handle", e.UserHandle)
	return nil
}

var _ conversation.EscalationNotifier = (*EscalationNotifier)(nil)
