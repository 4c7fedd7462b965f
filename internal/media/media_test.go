package media

import "testing"

func TestItemValidate(t *testing.T) {
	valid := Item{Kind: KindVideo, ID: "ep1", Title: "Episode 1", DurationSeconds: 600}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}

	cases := []struct {
		name string
		item Item
	}{
		{"unknown kind", Item{Kind: "book", ID: "x", DurationSeconds: 600}},
		{"empty id", Item{Kind: KindAudio, ID: "  ", DurationSeconds: 600}},
		{"zero duration", Item{Kind: KindVideo, ID: "x", DurationSeconds: 0}},
		{"negative duration", Item{Kind: KindVideo, ID: "x", DurationSeconds: -10}},
	}
	for _, tc := range cases {
		if err := tc.item.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestItemKey(t *testing.T) {
	v := Item{Kind: KindVideo, ID: "42"}
	a := Item{Kind: KindAudio, ID: "42"}
	if v.Key() == a.Key() {
		t.Fatal("same id across kinds must yield distinct keys")
	}
	if v.Key() != "video:42" {
		t.Fatalf("key = %q", v.Key())
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Video "); err != nil || k != KindVideo {
		t.Fatalf("ParseKind(Video) = %v %v", k, err)
	}
	if k, err := ParseKind("audio"); err != nil || k != KindAudio {
		t.Fatalf("ParseKind(audio) = %v %v", k, err)
	}
	if _, err := ParseKind("book"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
