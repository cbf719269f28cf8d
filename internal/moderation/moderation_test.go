package moderation

import (
	"strings"
	"testing"

	logx "aisocials/pkg/logx"
)

func TestModerateTextCleanContent(t *testing.T) {
	t.Parallel()
	m := New(Config{}, logx.Nop())

	res := m.ModerateText("Sharing an honest look at my morning routine. What helps you start the day?", "caption")
	if !res.Safe {
		t.Fatalf("clean text flagged unsafe: %+v", res)
	}
	if res.Confidence < 0.5 {
		t.Fatalf("confidence = %f, want >= 0.5", res.Confidence)
	}
}

func TestModerateTextBrandRisk(t *testing.T) {
	t.Parallel()
	m := New(Config{}, logx.Nop())

	res := m.ModerateText("Huge scandal and lawsuit drama unfolding today.", "caption")
	if !hasCategory(res, "brand_risk") {
		t.Fatalf("brand risk not flagged: %+v", res)
	}
	if res.Confidence >= 0.5 {
		t.Fatalf("confidence = %f, want < 0.5", res.Confidence)
	}
}

func TestModerateTextEngagementManipulation(t *testing.T) {
	t.Parallel()
	m := New(Config{}, logx.Nop())

	res := m.ModerateText("Follow me and check my bio, link in bio for more!", "caption")
	if !hasCategory(res, "engagement_manipulation") {
		t.Fatalf("manipulation not flagged: %+v", res)
	}
}

func TestModerateTextShouting(t *testing.T) {
	t.Parallel()
	m := New(Config{}, logx.Nop())

	res := m.ModerateText("THIS IS THE BEST DEAL YOU WILL EVER SEE IN YOUR LIFE", "caption")
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "capital") {
			found = true
		}
	}
	if !found {
		t.Fatalf("all-caps warning missing: %+v", res.Warnings)
	}
}

func TestModerateHashtags(t *testing.T) {
	t.Parallel()
	m := New(Config{}, logx.Nop())

	res := m.ModerateHashtags([]string{"#sunrise", "#scam", "#hiking"})
	if res.Safe {
		t.Fatalf("blocklisted hashtag not flagged: %+v", res)
	}
	if !hasCategory(res, "inappropriate_hashtags") {
		t.Fatalf("categories = %v", res.Categories)
	}

	res = m.ModerateHashtags([]string{"#sunrise", "#hiking"})
	if !res.Safe || res.Confidence != 1.0 {
		t.Fatalf("clean hashtags: %+v", res)
	}
}

func TestModerateHashtagsGenericWarning(t *testing.T) {
	t.Parallel()
	m := New(Config{}, logx.Nop())

	res := m.ModerateHashtags([]string{"#love", "#instagood", "#happy", "#trailrun"})
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "generic") {
			found = true
		}
	}
	if !found {
		t.Fatalf("generic warning missing: %+v", res.Warnings)
	}
}

func TestExtraBlockedTerms(t *testing.T) {
	t.Parallel()
	m := New(Config{ExtraBlockedTerms: []string{"competitorbrand"}}, logx.Nop())

	res := m.ModerateHashtags([]string{"#competitorbrand"})
	if res.Safe {
		t.Fatalf("custom blocked term not flagged: %+v", res)
	}
}

func hasCategory(res Result, want string) bool {
	for _, c := range res.Categories {
		if c == want {
			return true
		}
	}
	return false
}
