package instagram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxWebhookBody = 1 << 20

// WebhookHandler verifies Meta webhook requests and extracts messages.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	onMessages  func(msgs []InboundMessage)
}

// NewWebhookHandler creates a webhook handler. onMessages receives the
// messages of each verified event after the 200 has been written.
func NewWebhookHandler(verifyToken, appSecret string, onMessages func([]InboundMessage)) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		onMessages:  onMessages,
	}
}

// HandleVerification answers Meta's GET subscription challenge.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.verifyToken != "" && q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound handles POST webhook events.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Meta retries unless it gets a 200 quickly.
	w.WriteHeader(http.StatusOK)

	if msgs := ParseWebhookEvent(event); len(msgs) > 0 && h.onMessages != nil {
		h.onMessages(msgs)
	}
}

// ParseWebhookEvent extracts messages and postbacks, skipping echoes and
// events without content.
func ParseWebhookEvent(event WebhookEvent) []InboundMessage {
	var messages []InboundMessage
	for _, entry := range event.Entry {
		for _, m := range entry.Messaging {
			parsed := InboundMessage{
				PageID:      entry.ID,
				SenderID:    m.Sender.ID,
				RecipientID: m.Recipient.ID,
				Timestamp:   time.UnixMilli(m.Timestamp),
			}
			if parsed.PageID == "" {
				parsed.PageID = m.Recipient.ID
			}

			switch {
			case m.Message != nil:
				if m.Message.IsEcho || strings.TrimSpace(m.Message.Text) == "" {
					continue
				}
				parsed.Text = m.Message.Text
				parsed.MessageID = m.Message.MID
			case m.Postback != nil:
				parsed.IsPostback = true
				parsed.Text = m.Postback.Title
				parsed.PostbackPayload = m.Postback.Payload
			default:
				continue
			}
			messages = append(messages, parsed)
		}
	}
	return messages
}

// VerifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>").
func VerifySignature(appSecret string, body []byte, signature string) bool {
	const prefix = "sha256="
	if appSecret == "" || !strings.HasPrefix(signature, prefix) || len(signature) == len(prefix) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature[len(prefix):]))
}
