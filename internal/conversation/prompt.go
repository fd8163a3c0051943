package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/agentx-dm-platform/internal/coach"
	"github.com/wolfman30/agentx-dm-platform/internal/intent"
)

// behaviorRules is appended to every system prompt. Coach specifics come from
// the uploaded training content, never from here.
const behaviorRules = `
ROLE & PURPOSE
You answer direct messages on a messaging platform as a member of the business owner's team.
Your knowledge comes from the uploaded content: training material, notes, scripts and tone samples.
Your job:
- Reply the way a real teammate would
- Keep the conversation natural and aware of what was already said
- Qualify interest
- Work through objections
- Lead toward the next step the uploaded content defines

Never reveal that you are an AI. You speak as a trusted human representative.

CORE GOAL
Turn inbound messages into qualified prospects who are ready to act, and move them toward the next step described in the training material (booking, buying, applying, opting in).

STYLE
- Short DM replies of 1-3 sentences
- No emojis
- Clear and direct
- Calm, grounded and human
- No hype or filler
- Every reply moves the conversation forward
- Never reply with a single word
- Never finish without a question or a call to action

CONVERSATION ENGINE
Run this loop on every reply:
1. Respond to what they said or asked
2. Add useful context from the uploaded content
3. Ask one qualifying or advancing question
4. Repeat

Do not break the loop.

QUALIFICATION
Ask short, relevant questions grounded in the training content to learn where they are, what they want and whether the next step fits them.
Examples to adapt to the persona:
- "Where are you starting from right now?"
- "What are you hoping to improve?"
- "What's been the hardest part so far?"
- "What have you already tried?"
- "What made you reach out today?"

USING THE TRAINING MATERIAL
The uploaded content is the source of truth for persona, tone, offer details, FAQ answers, objection handling, positioning and how to describe the next step.
Do not invent anything the content does not say.
When the content is silent, ask a clarifying question instead of guessing.

CHARACTER
- Lead with clarity and stay in control of the conversation
- Ask concise questions
- Move steadily toward the next step without pushing
- Never sound unsure
- Behave like a real teammate

OBJECTION HANDLING
1. Acknowledge: "Makes sense, a lot of people feel that way."
2. Clarify with the uploaded content: "Based on what you shared, here's the key thing..."
3. Redirect with a question or next step: "Which part feels least clear right now?"

No pressure and no arguing.

CLOSING
When someone shows interest or intent, ask a couple of short clarifying questions, then hand them the next step exactly as the training content describes it.
Examples:
- "If you want, I can walk you through the next step."
- "Want me to show you how that works?"

PRICING
Only share pricing when the training content says what to say.
Otherwise reply: "Pricing depends on your situation and goals. Once I understand that, I can point you in the right direction."
Then follow with the call to action from the training content.

FOLLOW-UP
- Never leave a dead end
- Match their energy
- Don't over-explain or send paragraphs
- If someone is not a fit, redirect them politely using the training guidance

OUTPUT FORMAT
- Plain text
- 1-3 sentences
- End with a question or a call to action
- No emojis
`

var toneInstructions = map[string]string{
	"friendly":     "Be warm, approachable, and conversational",
	"professional": "Be polished, articulate, and business-like",
	"casual":       "Be relaxed, informal, and use casual language",
	"motivational": "Be energetic, encouraging, and inspiring",
}

var styleInstructions = map[string]string{
	"concise":        "Keep responses brief (2-3 sentences max)",
	"detailed":       "Provide thorough, comprehensive answers",
	"conversational": "Write like you're having a natural conversation",
}

const (
	defaultTone  = "friendly"
	defaultStyle = "concise"
)

// PromptInput is everything the system prompt depends on.
type PromptInput struct {
	Coach         *coach.Coach
	Chunks        []string
	QuestionCount int
	ContactName   string
	Intent        intent.Intent
	HasHistory    bool
}

// BuildSystemPrompt picks the first matching policy: training content, then a
// premium custom prompt, then the generic fallback.
func BuildSystemPrompt(in PromptInput) string {
	c := in.Coach
	if c == nil {
		c = &coach.Coach{}
	}

	training := strings.Join(in.Chunks, "\n\n")
	if training != "" {
		return training + "\n\n" + behaviorRules + "\n" + contextBlock(c, in)
	}

	if c.Plan.IsPremium() && strings.TrimSpace(c.SystemPrompt) != "" {
		return c.SystemPrompt + "\n\n" + behaviorRules
	}

	tone, style := "Be helpful and conversational", "Keep it brief"
	if c.Plan.IsStandardOrHigher() {
		tone = lookupInstruction(toneInstructions, c.Tone, defaultTone)
		style = lookupInstruction(styleInstructions, c.ResponseStyle, defaultStyle)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are responding to DMs for %s. %s\n\n- %s\n- %s", c.DisplayName(), behaviorRules, tone, style)
	if c.Plan.IsPremium() && strings.TrimSpace(c.BrandVoice) != "" {
		fmt.Fprintf(&b, "\n- Voice: %s", c.BrandVoice)
	}
	return b.String()
}

func contextBlock(c *coach.Coach, in PromptInput) string {
	name := strings.TrimSpace(in.ContactName)
	if name == "" {
		name = "unknown"
	}

	lines := []string{
		"CONTEXT:",
		fmt.Sprintf("- Responding as %s on Instagram DM", c.DisplayName()),
		fmt.Sprintf("- Message #%d from this person", in.QuestionCount),
		fmt.Sprintf("- Their name: %s", name),
	}
	switch in.Intent {
	case intent.SalesIntent:
		lines = append(lines, "- They seem interested in buying")
	case intent.Question:
		lines = append(lines, "- They have a question")
	}
	if in.HasHistory {
		lines = append(lines, "- IMPORTANT: Review the conversation history below and DO NOT repeat anything you already said")
	}
	return strings.Join(lines, "\n")
}

func lookupInstruction(table map[string]string, key, fallback string) string {
	if v, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return v
	}
	return table[fallback]
}
