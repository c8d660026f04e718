package discord

import "testing"

func TestParseMissionCommand(t *testing.T) {
	cases := []struct {
		name      string
		content   string
		wantTopic string
		wantHours int
		wantErr   bool
	}{
		{name: "topic only", content: "!mission launch week", wantTopic: "launch week", wantHours: 72},
		{name: "topic and hours", content: "!mission launch week | 48", wantTopic: "launch week", wantHours: 48},
		{name: "extra spacing", content: "!mission   spaced out  |  12 ", wantTopic: "spaced out", wantHours: 12},
		{name: "empty", content: "!mission ", wantErr: true},
		{name: "bad hours", content: "!mission topic | soon", wantErr: true},
		{name: "zero hours", content: "!mission topic | 0", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			topic, hours, err := parseMissionCommand(tc.content, 72)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseMissionCommand(%q) succeeded with %q/%d", tc.content, topic, hours)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMissionCommand(%q) failed: %v", tc.content, err)
			}
			if topic != tc.wantTopic || hours != tc.wantHours {
				t.Errorf("got %q/%d, want %q/%d", topic, hours, tc.wantTopic, tc.wantHours)
			}
		})
	}
}

func TestScoreForEmoji(t *testing.T) {
	for emoji, want := range scoreEmoji {
		got, ok := scoreForEmoji(emoji)
		if !ok || got != want {
			t.Errorf("scoreForEmoji(%q) = %d/%v, want %d", emoji, got, ok, want)
		}
	}
	if _, ok := scoreForEmoji("👍"); ok {
		t.Error("non-keycap emoji mapped to a score")
	}
}
