package coach

import "testing"

func TestParsePlan(t *testing.T) {
	tests := map[string]Plan{
		"premium":    PlanPremium,
		" Standard ": PlanStandard,
		"basic":      PlanBasic,
		"":           PlanBasic,
		"enterprise": PlanBasic,
	}
	for in, want := range tests {
		if got := ParsePlan(in); got != want {
			t.Fatalf("ParsePlan(%q) = %q, want %q", in, got, want)
		}
	}
	if !PlanPremium.IsStandardOrHigher() || !PlanStandard.IsStandardOrHigher() || PlanBasic.IsStandardOrHigher() {
		t.Fatal("unexpected IsStandardOrHigher")
	}
	if PlanStandard.IsPremium() {
		t.Fatal("standard is not premium")
	}
}

func TestCoachDisplayNameAndThreshold(t *testing.T) {
	c := &Coach{Name: "Sam Smith"}
	if c.DisplayName() != "Sam Smith" {
		t.Fatalf("unexpected display name %q", c.DisplayName())
	}
	c.BrandName = "Lift Lab"
	if c.DisplayName() != "Lift Lab" {
		t.Fatalf("unexpected display name %q", c.DisplayName())
	}
	if c.CTAThreshold() != DefaultCTAThreshold {
		t.Fatalf("expected default threshold, got %d", c.CTAThreshold())
	}
	c.MaxQuestionsBeforeCTA = 5
	if c.CTAThreshold() != 5 {
		t.Fatalf("expected 5, got %d", c.CTAThreshold())
	}
}
