package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/agentx-dm-platform/internal/coach"
	"github.com/wolfman30/agentx-dm-platform/internal/conversation"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "",
		FromEmail: "alerts@example.com",
	}, nil)

	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_FromName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "AgentX"},
		{"Lift Lab", "Lift Lab"},
	}
	for _, tt := range tests {
		sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "alerts@example.com", FromName: tt.in}, nil)
		if sender == nil {
			t.Fatal("expected non-nil sender")
		}
		if sender.fromName != tt.want {
			t.Errorf("from name %q: got %q", tt.in, sender.fromName)
		}
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "coach@example.com", Subject: "Test", Body: "Test body"})
	if err == nil {
		t.Error("expected error when client is nil")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "alerts@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "coach@example.com", Subject: "Hello", Body: "plain", HTML: "<p>rich</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "AgentX <alerts@example.com>" {
		t.Fatalf("unexpected from %q", got)
	}
	if api.input.Destination.ToAddresses[0] != "coach@example.com" {
		t.Fatalf("unexpected destination %v", api.input.Destination.ToAddresses)
	}
	body := api.input.Content.Simple.Body
	if aws.ToString(body.Text.Data) != "plain" || aws.ToString(body.Html.Data) != "<p>rich</p>" {
		t.Fatalf("unexpected body %+v", body)
	}
	subject := api.input.Content.Simple.Subject
	if aws.ToString(subject.Data) != "Hello" || aws.ToString(subject.Charset) != "UTF-8" || aws.ToString(body.Text.Charset) != "UTF-8" {
		t.Fatalf("unexpected subject %+v", subject)
	}
}

func TestSESSender_SendError(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{FromEmail: "alerts@example.com"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "coach@example.com", Subject: "x", Body: "y"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	if err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "coach@example.com"}); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestEscalationNotifier(t *testing.T) {
	sender := &recordingSender{}
	n := NewEscalationNotifier(sender, nil)

	err := n.NotifySalesIntent(context.Background(), conversation.Escalation{
		Coach:       &coach.Coach{ID: "coach-1", Name: "Sam", BrandName: "Lift Lab", EscalationEmail: "sam@example.com"},
		UserHandle:  "jane_doe",
		ContactName: "Jane Doe",
		Source:      "instagram",
		Message:     "how do I sign up?",
		Reply:       "Happy to help. What's your main goal?",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "sam@example.com" || msg.ToName != "Lift Lab" || msg.Subject != "Buyer intent from Jane Doe" {
		t.Fatalf("unexpected message %+v", msg)
	}
	for _, want := range []string{"Handle: jane_doe", "Channel: instagram", "how do I sign up?", "What's your main goal?"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestEscalationNotifierSkipsAndWraps(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	n := NewEscalationNotifier(sender, nil)

	if err := n.NotifySalesIntent(context.Background(), conversation.Escalation{Coach: &coach.Coach{ID: "c"}}); err != nil {
		t.Fatalf("coach without address should be skipped, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("no email expected")
	}

	err := n.NotifySalesIntent(context.Background(), conversation.Escalation{
		Coach:       &coach.Coach{ID: "c", EscalationEmail: "c@example.com"},
		UserHandle:  "1789",
		ContactName: "Unknown_User_1700000000",
	})
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if sender.sent[0].Subject != "Buyer intent from 1789" {
		t.Fatalf("unexpected subject %q", sender.sent[0].Subject)
	}
}
