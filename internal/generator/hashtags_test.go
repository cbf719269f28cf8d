package generator

import (
	"testing"
)

func TestExtractHashtags(t *testing.T) {
	t.Parallel()
	clean, tags := ExtractHashtags("Golden hour on the ridge. #hiking #sunset  #nature")
	if clean != "Golden hour on the ridge." {
		t.Fatalf("clean = %q", clean)
	}
	if len(tags) != 3 || tags[0] != "#hiking" || tags[2] != "#nature" {
		t.Fatalf("tags = %v", tags)
	}

	clean, tags = ExtractHashtags("no tags here")
	if clean != "no tags here" || len(tags) != 0 {
		t.Fatalf("clean=%q tags=%v", clean, tags)
	}
}

func TestEnhanceHashtagsDeduplicatesAndCaps(t *testing.T) {
	t.Parallel()
	got := EnhanceHashtags([]string{"#Nature", "#nature", "#trail"}, "nature", 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	seen := map[string]bool{}
	for _, tag := range got {
		key := tag
		if seen[key] {
			t.Fatalf("duplicate tag %q in %v", tag, got)
		}
		seen[key] = true
	}
	// model tags keep priority over theme fill
	if got[0] != "#Nature" || got[1] != "#trail" {
		t.Fatalf("order = %v", got)
	}
}

func TestEnhanceHashtagsUnknownTheme(t *testing.T) {
	t.Parallel()
	got := EnhanceHashtags([]string{"#one"}, "underwaterbasketweaving", 4)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4 (universal fill)", len(got))
	}
	if got[0] != "#one" {
		t.Fatalf("got = %v", got)
	}
}
