package sheets

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

func TestSanitizeSheetTitle(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  string
	}{
		{name: "clean", in: "Weekly Mission", want: "Weekly Mission"},
		{name: "forbidden chars", in: `Q*u?e:s/t\[1]'s`, want: "Quest1s"},
		{name: "truncated", in: strings.Repeat("a", 150), want: strings.Repeat("a", 100)},
		{name: "multi-byte truncated", in: strings.Repeat("é", 120), want: strings.Repeat("é", 100)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSheetTitle(tc.in); got != tc.want {
				t.Fatalf("SanitizeSheetTitle(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAverageScore(t *testing.T) {
	cases := []struct {
		name   string
		scores []int
		want   string
	}{
		{name: "none", scores: nil, want: "N/A"},
		{name: "single", scores: []int{5}, want: "5.00"},
		{name: "mixed", scores: []int{5, 3, 4}, want: "4.00"},
		{name: "two judges", scores: []int{4, 2}, want: "3.00"},
		{name: "repeating", scores: []int{5, 4}, want: "4.50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			votes := make([]store.Vote, len(tc.scores))
			for i, s := range tc.scores {
				votes[i] = store.Vote{JudgeID: "j", Score: s}
			}
			if got := AverageScore(votes); got != tc.want {
				t.Fatalf("AverageScore(%v) = %q, want %q", tc.scores, got, tc.want)
			}
		})
	}
}

func TestSerializeVotesSorted(t *testing.T) {
	votes := []store.Vote{
		{JudgeID: "zeta", Score: 2},
		{JudgeID: "alpha", Score: 5},
	}
	got := serializeVotes(votes)
	want := "alpha:5, zeta:2"
	if got != want {
		t.Fatalf("serializeVotes = %q, want %q", got, want)
	}
	if serializeVotes(nil) != "" {
		t.Fatal("serializeVotes(nil) should be empty")
	}
}

func TestIncrementalRowContent(t *testing.T) {
	sub := store.Submission{
		ID:          "sub-1",
		Source:      store.SourceDiscord,
		UserID:      "user-1",
		UserTag:     "user#1",
		URLs:        []string{"https://example.com/a", "https://example.com/b"},
		Content:     strings.Repeat("x", 600),
		SubmittedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	row := incrementalRow(sub)
	if len(row) != len(incrementalHeader()) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(incrementalHeader()))
	}
	if row[0] != "sub-1" {
		t.Errorf("submission id cell = %q", row[0])
	}
	if row[4] != "https://example.com/a" {
		t.Errorf("url cell = %q, want primary url", row[4])
	}
	if len(row[5]) != maxContentLen {
		t.Errorf("content cell length = %d, want %d", len(row[5]), maxContentLen)
	}
	if row[7] != "0" || row[8] != "N/A" || row[9] != "" {
		t.Errorf("placeholder aggregates = %q %q %q", row[7], row[8], row[9])
	}
}

func TestBatchRowsJudgeColumns(t *testing.T) {
	subs := []store.Submission{
		{
			ID:    "sub-1",
			Votes: []store.Vote{{JudgeID: "judge-bravo", Score: 4}},
		},
		{
			ID: "sub-2",
			Votes: []store.Vote{
				{JudgeID: "judge-alpha", Score: 2},
				{JudgeID: "judge-bravo", Score: 5},
			},
		},
	}
	header, rows := BatchRows(subs)

	base := len(baseHeader())
	if len(header) != base+2 {
		t.Fatalf("header has %d columns, want %d", len(header), base+2)
	}
	// Judge columns sorted by judge identifier, labelled by suffix.
	if header[base] != "Judge -alpha" || header[base+1] != "Judge -bravo" {
		t.Fatalf("judge columns = %q %q", header[base], header[base+1])
	}

	if rows[0][base] != "" || rows[0][base+1] != "4" {
		t.Errorf("sub-1 judge cells = %q %q", rows[0][base], rows[0][base+1])
	}
	if rows[1][base] != "2" || rows[1][base+1] != "5" {
		t.Errorf("sub-2 judge cells = %q %q", rows[1][base], rows[1][base+1])
	}
	if rows[1][7] != "2" || rows[1][8] != "3.50" {
		t.Errorf("sub-2 aggregates = count %q avg %q", rows[1][7], rows[1][8])
	}
}

func TestTruncateCountsCharacters(t *testing.T) {
	short := strings.Repeat("あ", 200) // 600 bytes but only 200 characters
	if got := truncate(short, maxContentLen); got != short {
		t.Fatalf("truncate shortened a %d-character string", utf8.RuneCountInString(short))
	}

	long := strings.Repeat("あ", 600)
	got := truncate(long, maxContentLen)
	if n := utf8.RuneCountInString(got); n != maxContentLen {
		t.Fatalf("truncated length = %d characters, want %d", n, maxContentLen)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncated string is not valid UTF-8")
	}
}

func TestJudgeColumnLabelShortID(t *testing.T) {
	if got := judgeColumnLabel("abc"); got != "Judge abc" {
		t.Fatalf("judgeColumnLabel(abc) = %q", got)
	}
	if got := judgeColumnLabel("123456789"); got != "Judge 456789" {
		t.Fatalf("judgeColumnLabel long = %q", got)
	}
}

func TestColLetter(t *testing.T) {
	cases := map[int]string{0: "A", 7: "H", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA"}
	for col, want := range cases {
		if got := colLetter(col); got != want {
			t.Errorf("colLetter(%d) = %q, want %q", col, got, want)
		}
	}
}
