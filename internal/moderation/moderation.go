// Package moderation screens generated text before it is queued for
// review or publishing. Keyword lists are deliberately simple; this is a
// pre-filter, not a replacement for human review.
package moderation

import (
	"regexp"
	"strings"

	logx "aisocials/pkg/logx"
)

// Result of one moderation pass. Safe means no blocking issue was found;
// Confidence is a 0..1 score where higher means safer. Warnings never
// block on their own.
type Result struct {
	Safe       bool           `json:"safe"`
	Confidence float64        `json:"confidence"`
	Issues     []string       `json:"issues,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Config tunes the moderator. Zero values get defaults.
type Config struct {
	// MaxHashtags flags tag lists longer than this. Default 30.
	MaxHashtags int
	// ExtraBlockedTerms extends the built-in keyword lists; matches count
	// toward the "inappropriate" category.
	ExtraBlockedTerms []string
}

type Moderator struct {
	log logx.Logger

	maxHashtags int

	inappropriate map[string][]string
	brandUnsafe   []string
	quality       []string
	redFlags      []string
}

func New(cfg Config, log logx.Logger) *Moderator {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.MaxHashtags <= 0 {
		cfg.MaxHashtags = 30
	}

	inappropriate := map[string][]string{
		"spam":       {"spam", "scam", "fake", "bot", "follow4follow", "f4f", "l4l"},
		"offensive":  {"hate", "racist", "sexist", "discrimination", "harassment"},
		"adult":      {"adult", "nsfw", "explicit", "sexual"},
		"violence":   {"violence", "kill", "death", "murder", "weapon"},
		"illegal":    {"illegal", "drugs", "piracy", "fraud", "stolen"},
		"misleading": {"miracle", "guaranteed", "instant", "secret", "hack"},
	}
	if len(cfg.ExtraBlockedTerms) > 0 {
		extra := make([]string, 0, len(cfg.ExtraBlockedTerms))
		for _, t := range cfg.ExtraBlockedTerms {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				extra = append(extra, t)
			}
		}
		inappropriate["custom"] = extra
	}

	return &Moderator{
		log:           log,
		maxHashtags:   cfg.MaxHashtags,
		inappropriate: inappropriate,
		brandUnsafe: []string{
			"controversy", "scandal", "lawsuit", "bankruptcy", "crisis",
			"disaster", "tragedy", "accident", "emergency",
		},
		quality: []string{
			"authentic", "genuine", "honest", "transparent", "valuable",
			"helpful", "informative", "inspiring", "creative", "original",
		},
		redFlags: []string{
			"like if", "comment if", "follow me", "check my bio",
			"link in bio", "dm me", "click link", "swipe up",
		},
	}
}

// ModerateText runs every text check and aggregates them into one Result.
// The context string only labels log output (e.g. "caption").
func (m *Moderator) ModerateText(text, context string) Result {
	lower := strings.ToLower(text)
	var issues, warnings, categories []string
	details := map[string]any{}

	inappropriateScore := m.inappropriateScore(lower)
	switch {
	case inappropriateScore > 0.7:
		issues = append(issues, "contains potentially inappropriate content")
		categories = append(categories, "inappropriate")
	case inappropriateScore > 0.3:
		warnings = append(warnings, "may contain questionable content")
	}
	details["inappropriate_score"] = inappropriateScore

	brandScore := m.brandSafetyScore(lower)
	if brandScore < 0.5 {
		warnings = append(warnings, "content may not be brand-safe")
		categories = append(categories, "brand_risk")
	}
	details["brand_safety_score"] = brandScore

	qualityScore := m.qualityScore(lower)
	if qualityScore < 0.3 {
		warnings = append(warnings, "content quality may be low")
	}
	details["quality_score"] = qualityScore

	manipulation := m.manipulationScore(lower)
	if manipulation > 0.5 {
		warnings = append(warnings, "contains potential engagement manipulation tactics")
		categories = append(categories, "engagement_manipulation")
	}
	details["engagement_manipulation_score"] = manipulation

	warnings = append(warnings, structureIssues(text)...)

	safe := len(issues) == 0
	confidence := min3(brandScore, 1.0-inappropriateScore, qualityScore)

	m.log.Debug("content moderated",
		logx.String("context", context),
		logx.Bool("safe", safe),
		logx.Float64("confidence", confidence),
		logx.Int("issues", len(issues)),
		logx.Int("warnings", len(warnings)),
	)

	return Result{
		Safe:       safe,
		Confidence: confidence,
		Issues:     issues,
		Warnings:   warnings,
		Categories: categories,
		Details:    details,
	}
}

// ModerateHashtags screens a tag list. Tags may carry their leading '#'.
func (m *Moderator) ModerateHashtags(tags []string) Result {
	var issues, warnings, categories []string
	details := map[string]any{}

	var flagged []string
	for _, tag := range tags {
		clean := strings.ToLower(strings.TrimPrefix(tag, "#"))
		for _, keywords := range m.inappropriate {
			hit := false
			for _, kw := range keywords {
				if strings.Contains(clean, kw) {
					hit = true
					break
				}
			}
			if hit {
				flagged = append(flagged, tag)
				break
			}
		}
	}
	if len(flagged) > 0 {
		issues = append(issues, "inappropriate hashtags detected: "+strings.Join(flagged, ", "))
		categories = append(categories, "inappropriate_hashtags")
	}

	if len(tags) > m.maxHashtags {
		warnings = append(warnings, "excessive number of hashtags may appear spammy")
	}

	generic := map[string]bool{
		"#love": true, "#instagood": true, "#photooftheday": true,
		"#beautiful": true, "#happy": true,
	}
	genericCount := 0
	for _, tag := range tags {
		if generic[strings.ToLower(tag)] {
			genericCount++
		}
	}
	if len(tags) > 0 && float64(genericCount) > float64(len(tags))*0.7 {
		warnings = append(warnings, "too many generic hashtags, consider more specific ones")
	}

	details["inappropriate_hashtags"] = flagged
	genericRatio := 0.0
	confidence := 1.0
	if len(tags) > 0 {
		genericRatio = float64(genericCount) / float64(len(tags))
		confidence = 1.0 - float64(len(flagged))/float64(len(tags))
	}
	details["generic_ratio"] = genericRatio

	return Result{
		Safe:       len(issues) == 0,
		Confidence: confidence,
		Issues:     issues,
		Warnings:   warnings,
		Categories: categories,
		Details:    details,
	}
}

// inappropriateScore is the fraction of blocklist keywords present in the
// text, across all categories.
func (m *Moderator) inappropriateScore(lower string) float64 {
	total, found := 0, 0
	for _, keywords := range m.inappropriate {
		total += len(keywords)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				found++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(found) / float64(total)
}

// brandSafetyScore returns 0..1, higher is safer. Any unsafe keyword drags
// the score below 0.5; quality indicators lift it above the 0.7 baseline.
func (m *Moderator) brandSafetyScore(lower string) float64 {
	unsafe := 0
	for _, kw := range m.brandUnsafe {
		if strings.Contains(lower, kw) {
			unsafe++
		}
	}
	if unsafe > 0 {
		s := 0.5 - float64(unsafe)*0.2
		if s < 0 {
			s = 0
		}
		return s
	}
	indicators := 0
	for _, kw := range m.quality {
		if strings.Contains(lower, kw) {
			indicators++
		}
	}
	s := 0.7 + float64(indicators)*0.1
	if s > 1 {
		s = 1
	}
	return s
}

func (m *Moderator) qualityScore(lower string) float64 {
	score := 0.5

	for _, kw := range m.quality {
		if strings.Contains(lower, kw) {
			score += 0.1
		}
	}

	if len(strings.Split(lower, ".")) > 1 {
		score += 0.1
	}

	words := strings.Fields(lower)
	if len(words) > 0 {
		unique := map[string]bool{}
		for _, w := range words {
			unique[w] = true
		}
		score += float64(len(unique)) / float64(len(words)) * 0.2
	}

	if len(words) > 10 {
		counts := map[string]int{}
		maxRep := 1
		for _, w := range words {
			counts[w]++
			if counts[w] > maxRep {
				maxRep = counts[w]
			}
		}
		if float64(maxRep) > float64(len(words))*0.3 {
			score -= 0.2
		}
	}

	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

func (m *Moderator) manipulationScore(lower string) float64 {
	count := 0
	for _, phrase := range m.redFlags {
		if strings.Contains(lower, phrase) {
			count++
		}
	}
	s := float64(count) * 0.3
	if s > 1 {
		return 1
	}
	return s
}

var emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}]`)

// structureIssues flags formatting problems that make content look
// machine-generated or shouty.
func structureIssues(text string) []string {
	var issues []string

	if len(text) > 20 && text == strings.ToUpper(text) && text != strings.ToLower(text) {
		issues = append(issues, "excessive use of capital letters")
	}

	punct := 0
	for _, r := range text {
		if r == '!' || r == '?' || r == '.' {
			punct++
		}
	}
	if float64(punct) > float64(len(text))*0.1 {
		issues = append(issues, "excessive punctuation usage")
	}

	words := len(strings.Fields(text))
	emojis := len(emojiPattern.FindAllString(text, -1))
	if words > 0 && float64(emojis) > float64(words)*0.5 {
		issues = append(issues, "excessive emoji usage")
	}

	return issues
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
