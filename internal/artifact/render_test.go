package artifact

import (
	"testing"
)

func TestSanitizeStripsFences(t *testing.T) {
	cases := map[string]string{
		"```Summary```":                   "Summary",
		"```markdown\n# Title\n```":       "markdown\n# Title\n",
		"no fences":                       "no fences",
		"inline `code` stays":             "inline `code` stays",
		"````four":                        "`four",
	}
	for input, want := range cases {
		if got := Sanitize(input); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCollectWarnsOnMissingFiles(t *testing.T) {
	store := newTestStore(t)
	if err := store.Write(InterviewMaterials, []byte("```Q1```")); err != nil {
		t.Fatal(err)
	}
	items := Collect(store)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if !items[0].Missing || items[0].Warning() != "Tailored resume file not found." {
		t.Fatalf("unexpected resume item %+v", items[0])
	}
	if items[1].Missing || items[1].Content != "Q1" {
		t.Fatalf("unexpected interview item %+v", items[1])
	}
	warnings := Warnings(items)
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}
