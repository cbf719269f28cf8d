package generator

import (
	"regexp"
	"strings"
)

var (
	hashtagPattern = regexp.MustCompile(`#\w+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// ExtractHashtags splits hashtags out of a caption and returns the cleaned
// text and the tags in their original order.
func ExtractHashtags(caption string) (string, []string) {
	tags := hashtagPattern.FindAllString(caption, -1)
	clean := hashtagPattern.ReplaceAllString(caption, "")
	clean = strings.TrimSpace(spacePattern.ReplaceAllString(clean, " "))
	return clean, tags
}

// themeTags maps a content theme to tags ordered from broad reach to
// niche. EnhanceHashtags takes them in order until max is reached.
var themeTags = map[string][]string{
	"nature": {
		"#nature", "#naturephotography", "#outdoors", "#landscape",
		"#wildlife", "#hiking", "#naturelover", "#getoutside",
	},
	"lifestyle": {
		"#lifestyle", "#daily", "#life", "#inspiration",
		"#mindfulness", "#selfcare", "#wellness", "#slowliving",
	},
	"inspiration": {
		"#inspiration", "#motivation", "#quotes", "#mindset",
		"#growth", "#positivity", "#personaldevelopment", "#growthmindset",
	},
	"business": {
		"#business", "#entrepreneur", "#success", "#leadership",
		"#marketing", "#startup", "#businessowner", "#entrepreneurship",
	},
	"fitness": {
		"#fitness", "#health", "#workout", "#wellness",
		"#gym", "#training", "#fitnessjourney", "#fitnessmotivation",
	},
	"food": {
		"#food", "#foodie", "#delicious", "#cooking",
		"#recipe", "#homemade", "#foodphotography", "#homecooking",
	},
}

var universalTags = []string{"#instagood", "#photooftheday", "#love", "#beautiful", "#happy"}

// EnhanceHashtags deduplicates the model's tags and tops the list up with
// theme-specific and universal tags, capped at max.
func EnhanceHashtags(tags []string, theme string, max int) []string {
	if max <= 0 {
		max = 15
	}

	out := make([]string, 0, max)
	seen := map[string]bool{}
	add := func(tag string) {
		key := strings.ToLower(tag)
		if seen[key] || len(out) >= max {
			return
		}
		seen[key] = true
		out = append(out, tag)
	}

	for _, t := range tags {
		add(t)
	}
	for _, t := range themeTags[strings.ToLower(theme)] {
		add(t)
	}
	for _, t := range universalTags {
		add(t)
	}
	return out
}
