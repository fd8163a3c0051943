// Package payload turns heterogeneous chat-automation webhook bodies into a
// canonical inbound request.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// ErrMissingMessage is returned when no candidate location holds a message.
var ErrMissingMessage = errors.New("payload: missing required field: message")

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsUUID reports whether v is a canonical 8-4-4-4-12 hex UUID.
func IsUUID(v string) bool {
	return uuidPattern.MatchString(v)
}

// Request is the canonical inbound message.
type Request struct {
	CoachID         string `json:"coach_id"`
	UserHandle      string `json:"user_handle"`
	ContactName     string `json:"contact_name"`
	ContactID       string `json:"contact_id,omitempty"`
	Message         string `json:"message"`
	SourceChannel   string `json:"source_channel"`
	ContactEmail    string `json:"contact_email,omitempty"`
	CoachIDFallback bool   `json:"-"`
}

type scope int

const (
	scopeData scope = iota
	scopeRaw
)

// path addresses a string value inside either the unwrapped data object or
// the raw body.
type path struct {
	scope scope
	keys  []string
}

func d(keys ...string) path { return path{scope: scopeData, keys: keys} }
func r(keys ...string) path { return path{scope: scopeRaw, keys: keys} }

// Candidate paths per field, in precedence order.
var (
	coachIDPaths = []path{d("coach_id"), r("coach_id"), d("coachId"), r("coachId")}

	contactNamePaths         = []path{d("contact_name"), r("contact_name"), d("contactName"), r("contactName")}
	contactNameFallbackPaths = []path{r("contact_id"), d("contact_id")}

	userHandlePaths = []path{
		d("user_handle"), d("userHandle"), d("instagramHandle"),
		r("user_handle"), r("userHandle"),
		d("contact_id"), r("contact_id"),
	}

	messagePaths = []path{
		d("message"), r("message"),
		d("last_inbound_message"), d("lastMessage"),
		r("message", "body"), r("message", "text"), r("message", "content"),
		d("message", "body"), d("message", "text"), d("message", "content"),
	}

	sourcePaths = []path{
		d("source"), r("source"),
		d("source_channel"), r("source_channel"),
		d("platform"), r("platform"),
	}

	contactIDPaths    = []path{d("contact_id"), d("contactId"), r("contact_id")}
	contactEmailPaths = []path{d("contact_email"), d("contactEmail"), r("contact_email")}
)

// Normalizer resolves canonical fields from vendor payloads. It never fails on
// malformed input other than an unresolvable message.
type Normalizer struct {
	defaultCoachID string
	defaultSource  string
	logger         *logging.Logger
	now            func() time.Time
}

// NewNormalizer creates a normalizer with the configured fallbacks.
func NewNormalizer(defaultCoachID, defaultSource string, logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(defaultSource) == "" {
		defaultSource = "manychat"
	}
	return &Normalizer{
		defaultCoachID: defaultCoachID,
		defaultSource:  defaultSource,
		logger:         logger,
		now:            time.Now,
	}
}

// Normalize decodes body and resolves the canonical request. A body that is
// not a JSON object is treated as empty.
func (n *Normalizer) Normalize(body []byte) (Request, error) {
	raw := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || raw == nil {
		n.logger.Warn("webhook body is not a JSON object", "error", err, "bytes", len(body))
		raw = map[string]any{}
	}
	req := n.NormalizeMap(raw)
	if req.Message == "" {
		return req, ErrMissingMessage
	}
	return req, nil
}

// NormalizeMap resolves the canonical request from an already-decoded body.
// Message may be empty; callers decide whether that is fatal.
func (n *Normalizer) NormalizeMap(raw map[string]any) Request {
	if raw == nil {
		raw = map[string]any{}
	}
	data := unwrap(raw)

	var req Request

	rawCoachID := pick(raw, data, coachIDPaths)
	if IsUUID(rawCoachID) {
		req.CoachID = rawCoachID
	} else {
		req.CoachID = n.defaultCoachID
		req.CoachIDFallback = true
		n.logger.Warn("invalid or missing coach_id, using default",
			"received", rawCoachID,
			"using", n.defaultCoachID,
		)
	}

	req.ContactName = pick(raw, data, contactNamePaths)
	if req.ContactName == "" {
		req.ContactName = pick(raw, data, contactNameFallbackPaths)
	}
	if req.ContactName == "" {
		req.ContactName = "Unknown_User_" + strconv.FormatInt(n.now().UnixMilli(), 10)
	}

	req.UserHandle = pick(raw, data, userHandlePaths)
	if req.UserHandle == "" {
		req.UserHandle = req.ContactName
	}

	req.Message = pick(raw, data, messagePaths)

	req.SourceChannel = pick(raw, data, sourcePaths)
	if req.SourceChannel == "" {
		req.SourceChannel = n.defaultSource
	}

	req.ContactID = pick(raw, data, contactIDPaths)
	req.ContactEmail = pick(raw, data, contactEmailPaths)
	return req
}

// unwrap returns the nested vendor object: customData, else data, else raw.
func unwrap(raw map[string]any) map[string]any {
	if nested, ok := raw["customData"].(map[string]any); ok {
		return nested
	}
	if nested, ok := raw["data"].(map[string]any); ok {
		return nested
	}
	return raw
}

// pick returns the first non-empty trimmed string found at the candidate paths.
func pick(raw, data map[string]any, paths []path) string {
	for _, p := range paths {
		root := data
		if p.scope == scopeRaw {
			root = raw
		}
		if v := lookupString(root, p.keys); v != "" {
			return v
		}
	}
	return ""
}

func lookupString(root map[string]any, keys []string) string {
	var cur any = root
	for _, key := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	s, ok := cur.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
