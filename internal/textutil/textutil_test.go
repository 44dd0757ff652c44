package textutil

import "testing"

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"Presidential Debate 2024": "presidential_debate_2024",
		"videos/town-hall":         "videos_town-hall",
		"  ":                       "unknown",
		"!!!":                      "unknown",
		"Año  Nuevo":               "a_o_nuevo",
	}
	for input, want := range tests {
		if got := SanitizeToken(input); got != want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTitle(t *testing.T) {
	if got := Title("conservative"); got != "Conservative" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := Title("far_left"); got != "Far Left" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := Title(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  thank \n you\tall "); got != "thank you all" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("a longer sentence", 8); got != "a lon..." {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("unexpected %q", got)
	}
}
