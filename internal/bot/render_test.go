package bot

import (
	"strings"
	"testing"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/orchestrator"
)

func TestCallbackRoundTrip(t *testing.T) {
	owner, action, ok := parseCallback(cb(42, actionReset))
	if !ok || owner != 42 || action != actionReset {
		t.Fatalf("got %d %q %v", owner, action, ok)
	}

	for _, bad := range []string{"", "pv:1:generate", "lk:x:generate", "lk:1"} {
		if _, _, ok := parseCallback(bad); ok {
			t.Errorf("parseCallback(%q) accepted", bad)
		}
	}
}

func TestActionKeyboard(t *testing.T) {
	kb := actionKeyboard(5)
	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected layout %+v", kb.InlineKeyboard)
	}
	if data := kb.InlineKeyboard[0][0].CallbackData; data == nil || *data != "lk:5:generate" {
		t.Fatalf("generate callback = %v", data)
	}
}

func TestProgressText(t *testing.T) {
	tests := []struct {
		percent int
		want    string
	}{
		{0, "Designing... 0%\n▱▱▱▱▱▱▱▱▱▱"},
		{56, "Designing... 56%\n▰▰▰▰▰▱▱▱▱▱"},
		{100, "Designing... 100%\n▰▰▰▰▰▰▰▰▰▰"},
		{140, "Designing... 100%"},
	}
	for _, tc := range tests {
		if got := progressText(tc.percent); !strings.Contains(got, tc.want) {
			t.Errorf("progressText(%d) = %q, want it to contain %q", tc.percent, got, tc.want)
		}
	}
}

func TestStylesTextListsBothCategories(t *testing.T) {
	text := stylesText(catalog.Default())
	if !strings.Contains(text, "Men:") || !strings.Contains(text, "Women:") {
		t.Fatalf("styles text missing a category:\n%s", text)
	}
	if strings.Index(text, "Men:") > strings.Index(text, "Women:") {
		t.Fatal("default category should be listed first")
	}
}

func TestAlbumPhotosKeepOrder(t *testing.T) {
	photos := albumPhotos([]orchestrator.Artifact{
		{StyleLabel: "A", ImageData: "data:image/png;base64,AA=="},
		{StyleLabel: "B", ImageData: "data:image/png;base64,AQ=="},
	})
	if len(photos) != 2 || photos[0].Caption != "A" || photos[1].Caption != "B" {
		t.Fatalf("got %+v", photos)
	}
}
