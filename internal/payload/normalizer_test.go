package payload

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const testDefaultCoach = "6abbc19a-ef88-4359-9dde-169d247f696f"
const validCoach = "0F8FAD5B-D9CB-469F-A165-70867728950E"

func newTestNormalizer(buf *bytes.Buffer) *Normalizer {
	n := NewNormalizer(testDefaultCoach, "manychat", logging.NewWithWriter("debug", buf))
	n.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return n
}

func TestNormalizeMessageAcrossShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"flat string", `{"message":"How much is coaching?"}`},
		{"nested data", `{"data":{"message":"How much is coaching?"}}`},
		{"nested customData", `{"customData":{"message":"How much is coaching?"},"data":{"message":"ignored"}}`},
		{"message body object", `{"message":{"body":"How much is coaching?"}}`},
		{"message text object", `{"message":{"text":"How much is coaching?"}}`},
		{"message content object", `{"message":{"content":"How much is coaching?"}}`},
		{"nested message object", `{"data":{"message":{"text":"How much is coaching?"}}}`},
		{"last inbound message", `{"data":{"last_inbound_message":"How much is coaching?"}}`},
		{"lastMessage", `{"data":{"lastMessage":"  How much is coaching?  "}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			req, err := newTestNormalizer(&buf).Normalize([]byte(tt.body))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if req.Message != "How much is coaching?" {
				t.Fatalf("Message = %q", req.Message)
			}
		})
	}
}

func TestNormalizeNestedTakesPrecedence(t *testing.T) {
	var buf bytes.Buffer
	body := `{"message":"outer","source":"outer-src","contact_name":"Outer","data":{"message":"inner","source":"inner-src","contact_name":"Inner Name","coach_id":"` + validCoach + `"}}`
	req, err := newTestNormalizer(&buf).Normalize([]byte(body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if req.Message != "inner" || req.SourceChannel != "inner-src" || req.ContactName != "Inner Name" {
		t.Fatalf("expected nested values to win, got %+v", req)
	}
	if req.CoachID != validCoach || req.CoachIDFallback {
		t.Fatalf("expected valid coach id to be kept, got %+v", req)
	}
}

func TestNormalizeCoachIDFallback(t *testing.T) {
	for _, body := range []string{
		`{"coach_id":"not-a-uuid","message":"hi"}`,
		`{"message":"hi"}`,
		`{"coachId":"6abbc19a-ef88-4359-9dde","message":"hi"}`,
		`{"coach_id":42,"message":"hi"}`,
	} {
		var buf bytes.Buffer
		req, err := newTestNormalizer(&buf).Normalize([]byte(body))
		if err != nil {
			t.Fatalf("Normalize(%s): %v", body, err)
		}
		if req.CoachID != testDefaultCoach || !req.CoachIDFallback {
			t.Fatalf("Normalize(%s) coach = %q", body, req.CoachID)
		}
		if !strings.Contains(buf.String(), `"level":"WARN"`) {
			t.Fatalf("expected a warning log, got %s", buf.String())
		}
		if strings.Contains(buf.String(), `"level":"ERROR"`) {
			t.Fatalf("fallback must not log an error: %s", buf.String())
		}
	}
}

func TestNormalizeHandleFallbackChain(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantHandle string
		wantName   string
	}{
		{"explicit handle", `{"message":"x","user_handle":"@jane","contact_name":"Jane Doe"}`, "@jane", "Jane Doe"},
		{"instagram handle", `{"data":{"message":"x","instagramHandle":"@ig"}}`, "@ig", ""},
		{"contact id becomes handle", `{"message":"x","contact_id":"98765"}`, "98765", "98765"},
		{"name becomes handle", `{"message":"x","contactName":"Sam"}`, "Sam", "Sam"},
		{"placeholder", `{"message":"x"}`, "Unknown_User_1700000000123", "Unknown_User_1700000000123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			req, err := newTestNormalizer(&buf).Normalize([]byte(tt.body))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if req.UserHandle != tt.wantHandle {
				t.Fatalf("UserHandle = %q, want %q", req.UserHandle, tt.wantHandle)
			}
			if tt.wantName != "" && req.ContactName != tt.wantName {
				t.Fatalf("ContactName = %q, want %q", req.ContactName, tt.wantName)
			}
		})
	}
}

func TestNormalizeOptionalFields(t *testing.T) {
	var buf bytes.Buffer
	body := `{"platform":"Instagram","contact_email":"raw@example.com","data":{"message":"x","contactId":"c-9","contactEmail":"nested@example.com"}}`
	req, err := newTestNormalizer(&buf).Normalize([]byte(body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if req.ContactID != "c-9" {
		t.Fatalf("ContactID = %q", req.ContactID)
	}
	if req.ContactEmail != "nested@example.com" {
		t.Fatalf("ContactEmail = %q", req.ContactEmail)
	}
	if req.SourceChannel != "Instagram" {
		t.Fatalf("SourceChannel = %q", req.SourceChannel)
	}
}

func TestNormalizeDefaultSource(t *testing.T) {
	var buf bytes.Buffer
	req, err := newTestNormalizer(&buf).Normalize([]byte(`{"message":"x","source":"   "}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if req.SourceChannel != "manychat" {
		t.Fatalf("SourceChannel = %q", req.SourceChannel)
	}
}

func TestNormalizeMissingMessage(t *testing.T) {
	for _, body := range []string{`{"message":""}`, `{"message":{"body":"  "}}`, `not json`, `[1,2]`, `null`, ``} {
		var buf bytes.Buffer
		req, err := newTestNormalizer(&buf).Normalize([]byte(body))
		if !errors.Is(err, ErrMissingMessage) {
			t.Fatalf("Normalize(%q) err = %v, want ErrMissingMessage", body, err)
		}
		if req.UserHandle == "" || req.CoachID == "" {
			t.Fatalf("expected degraded but populated request, got %+v", req)
		}
	}
}

func TestIsUUID(t *testing.T) {
	if !IsUUID(validCoach) || !IsUUID(strings.ToLower(validCoach)) {
		t.Fatal("expected valid uuid in either case")
	}
	if IsUUID("0f8fad5b-d9cb-469f-a165-70867728950") || IsUUID("") {
		t.Fatal("expected invalid uuid")
	}
}
