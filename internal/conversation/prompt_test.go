package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agentx-dm-platform/internal/coach"
	"github.com/wolfman30/agentx-dm-platform/internal/intent"
)

func TestBuildSystemPromptWithTraining(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInput{
		Coach:         &coach.Coach{Name: "Sam", BrandName: "Lift Lab", Plan: coach.PlanPremium, SystemPrompt: "ignored"},
		Chunks:        []string{"chunk one", "chunk two"},
		QuestionCount: 4,
		Intent:        intent.SalesIntent,
		HasHistory:    true,
	})

	assert.True(t, strings.HasPrefix(prompt, "chunk one\n\nchunk two\n\n"))
	assert.Contains(t, prompt, "PRICING")
	assert.Contains(t, prompt, "Pricing depends on your situation and goals. Once I understand that, I can point you in the right direction.")
	assert.NotContains(t, prompt, "ignored")
	assert.True(t, strings.HasSuffix(prompt, strings.Join([]string{
		"CONTEXT:",
		"- Responding as Lift Lab on Instagram DM",
		"- Message #4 from this person",
		"- Their name: unknown",
		"- They seem interested in buying",
		"- IMPORTANT: Review the conversation history below and DO NOT repeat anything you already said",
	}, "\n")), prompt)
}

func TestBuildSystemPromptPremiumCustom(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInput{
		Coach: &coach.Coach{Name: "Sam", Plan: coach.PlanPremium, SystemPrompt: "You are Sam's assistant."},
	})
	assert.True(t, strings.HasPrefix(prompt, "You are Sam's assistant.\n\n"))
	assert.Contains(t, prompt, "OBJECTION HANDLING")
	assert.NotContains(t, prompt, "CONTEXT:")
}

func TestBuildSystemPromptFallback(t *testing.T) {
	tests := []struct {
		name  string
		coach coach.Coach
		tail  string
	}{
		{
			name:  "basic ignores stored preferences",
			coach: coach.Coach{Name: "Sam", Plan: coach.PlanBasic, Tone: "professional", ResponseStyle: "detailed", BrandVoice: "bold"},
			tail:  "\n\n- Be helpful and conversational\n- Keep it brief",
		},
		{
			name:  "standard uses stored preferences",
			coach: coach.Coach{Name: "Sam", Plan: coach.PlanStandard, Tone: "professional", ResponseStyle: "detailed", BrandVoice: "bold"},
			tail:  "\n\n- Be polished, articulate, and business-like\n- Provide thorough, comprehensive answers",
		},
		{
			name:  "standard defaults",
			coach: coach.Coach{Name: "Sam", Plan: coach.PlanStandard},
			tail:  "\n\n- Be warm, approachable, and conversational\n- Keep responses brief (2-3 sentences max)",
		},
		{
			name:  "premium adds brand voice",
			coach: coach.Coach{Name: "Sam", Plan: coach.PlanPremium, Tone: "motivational", ResponseStyle: "conversational", BrandVoice: "no-nonsense"},
			tail:  "\n\n- Be energetic, encouraging, and inspiring\n- Write like you're having a natural conversation\n- Voice: no-nonsense",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.coach
			prompt := BuildSystemPrompt(PromptInput{Coach: &c})
			assert.True(t, strings.HasPrefix(prompt, "You are responding to DMs for Sam. "), prompt)
			assert.True(t, strings.HasSuffix(prompt, tt.tail), prompt)
		})
	}
}

func TestContextBlockUsesContactName(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInput{
		Coach:         &coach.Coach{Name: "Sam"},
		Chunks:        []string{"content"},
		QuestionCount: 1,
		ContactName:   "Jane",
		Intent:        intent.Question,
	})
	assert.Contains(t, prompt, "- Their name: Jane\n- They have a question")
	assert.NotContains(t, prompt, "DO NOT repeat")
}

func TestCTAInjectorLinkResolution(t *testing.T) {
	tests := []struct {
		name    string
		coach   coach.Coach
		offers  *fakeCoaches
		count   int
		wantURL string
	}{
		{
			name:   "below threshold",
			coach:  coach.Coach{ID: "c1", MainCheckoutURL: "https://pay.example.com"},
			offers: &fakeCoaches{},
			count:  2,
		},
		{
			name:    "checkout url wins",
			coach:   coach.Coach{ID: "c1", MainCheckoutURL: "https://pay.example.com"},
			offers:  &fakeCoaches{offer: &coach.Offer{TrackingSlug: "ignored"}},
			count:   3,
			wantURL: "https://pay.example.com",
		},
		{
			name:    "offer tracking link",
			coach:   coach.Coach{ID: "c1"},
			offers:  &fakeCoaches{offer: &coach.Offer{TrackingSlug: "strength-12"}},
			count:   3,
			wantURL: "https://agentx.example.com/track/strength-12",
		},
		{
			name:   "custom threshold",
			coach:  coach.Coach{ID: "c1", MaxQuestionsBeforeCTA: 5, MainCheckoutURL: "https://pay.example.com"},
			offers: &fakeCoaches{},
			count:  4,
		},
		{
			name:   "no link available",
			coach:  coach.Coach{ID: "c1"},
			offers: &fakeCoaches{},
			count:  9,
		},
		{
			name:   "offer lookup error",
			coach:  coach.Coach{ID: "c1"},
			offers: &fakeCoaches{offerErr: errors.New("timeout")},
			count:  9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			injector := NewCTAInjector(tt.offers, "https://agentx.example.com/", nil)
			c := tt.coach
			reply, link := injector.Inject(context.Background(), &c, tt.count, "Sounds good.")
			if tt.wantURL == "" {
				assert.Nil(t, link)
				assert.Equal(t, "Sounds good.", reply)
				return
			}
			require.NotNil(t, link)
			assert.Equal(t, tt.wantURL, *link)
			assert.True(t, strings.HasPrefix(reply, "Sounds good.\n\n"))
			assert.True(t, strings.HasSuffix(reply, tt.wantURL))
		})
	}
}

func TestGreetingName(t *testing.T) {
	tests := map[string]string{
		"Jane Doe":                "Jane",
		"  Marcus ":               "Marcus",
		"1234567890":              "",
		"Unknown_User_1700000000": "",
		"":                        "",
		"ig 42":                   "ig",
	}
	for in, want := range tests {
		assert.Equal(t, want, greetingName(in), "greetingName(%q)", in)
	}
}

func TestNeutralReply(t *testing.T) {
	first := func(int) int { return 0 }
	assert.Equal(t, "🙌", neutralReply(intent.LowEffort, "Jane", first))
	assert.Equal(t, "Hey Jane! What's up?", neutralReply(intent.Personal, "Jane Doe", first))
	assert.Equal(t, "Hey! What's up?", neutralReply(intent.Personal, "884422", first))
	assert.Equal(t, "", neutralReply(intent.Question, "Jane", first))
}
