package sheets

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

const (
	maxContentLen  = 500
	maxTitleLen    = 100
	judgeSuffixLen = 6

	// Zero-based position of the Source column, fixed for schema migration.
	sourceCol = 1

	telegramSheet = "Telegram Submissions"
)

// baseHeader is the fixed leading column set shared by incremental and batch
// rows. Incremental mode appends one serialized Votes column; batch mode
// appends one column per judge.
func baseHeader() []string {
	return []string{
		"Submission ID",
		"Source",
		"User ID",
		"User Tag",
		"URL",
		"Content",
		"Submitted At",
		"Vote Count",
		"Average Score",
	}
}

func incrementalHeader() []string {
	return append(baseHeader(), "Votes")
}

func telegramHeader() []string {
	return []string{"Submission ID", "User ID", "Username", "URL", "Content", "Submitted At", "Chat ID"}
}

// SanitizeSheetTitle strips characters Sheets rejects in tab names and bounds
// the length.
func SanitizeSheetTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch r {
		case '*', '?', ':', '/', '\\', '[', ']', '\'':
			continue
		}
		b.WriteRune(r)
	}
	return truncate(b.String(), maxTitleLen)
}

// AverageScore formats the arithmetic mean of the votes to two decimal
// places, or "N/A" when there are none.
func AverageScore(votes []store.Vote) string {
	if len(votes) == 0 {
		return "N/A"
	}
	sum := 0
	for _, v := range votes {
		sum += v.Score
	}
	return fmt.Sprintf("%.2f", float64(sum)/float64(len(votes)))
}

// serializeVotes renders the vote list for the incremental Votes column,
// sorted by judge for stable output.
func serializeVotes(votes []store.Vote) string {
	if len(votes) == 0 {
		return ""
	}
	sorted := make([]store.Vote, len(votes))
	copy(sorted, votes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].JudgeID < sorted[j].JudgeID })
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = fmt.Sprintf("%s:%d", v.JudgeID, v.Score)
	}
	return strings.Join(parts, ", ")
}

// truncate bounds s to n characters, never splitting a multi-byte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// judgeColumnLabel keeps batch headers short by labelling each judge column
// with a fixed-length suffix of the judge identifier.
func judgeColumnLabel(judgeID string) string {
	suffix := judgeID
	if len(suffix) > judgeSuffixLen {
		suffix = suffix[len(suffix)-judgeSuffixLen:]
	}
	return "Judge " + suffix
}

// baseCells builds the leading cells shared by both sync modes.
func baseCells(sub store.Submission) []string {
	return []string{
		sub.ID,
		sub.Source,
		sub.UserID,
		sub.UserTag,
		sub.PrimaryURL(),
		truncate(sub.Content, maxContentLen),
		sub.SubmittedAt.UTC().Format(time.RFC3339),
		fmt.Sprintf("%d", len(sub.Votes)),
		AverageScore(sub.Votes),
	}
}

// incrementalRow is the append-time row: placeholder aggregates are already
// correct because a new submission has no votes.
func incrementalRow(sub store.Submission) []string {
	return append(baseCells(sub), serializeVotes(sub.Votes))
}

// BatchRows computes the full row set for a mission export. Judge columns are
// derived from every distinct judge observed across the submissions, sorted
// by judge identifier.
func BatchRows(subs []store.Submission) (header []string, rows [][]string) {
	judgeSet := map[string]struct{}{}
	for _, sub := range subs {
		for _, v := range sub.Votes {
			judgeSet[v.JudgeID] = struct{}{}
		}
	}
	judges := make([]string, 0, len(judgeSet))
	for j := range judgeSet {
		judges = append(judges, j)
	}
	sort.Strings(judges)

	header = baseHeader()
	for _, j := range judges {
		header = append(header, judgeColumnLabel(j))
	}

	for _, sub := range subs {
		row := baseCells(sub)
		scores := map[string]int{}
		for _, v := range sub.Votes {
			scores[v.JudgeID] = v.Score
		}
		for _, j := range judges {
			if score, ok := scores[j]; ok {
				row = append(row, fmt.Sprintf("%d", score))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return header, rows
}

func telegramRow(sub store.Submission) []string {
	return []string{
		sub.ID,
		sub.UserID,
		sub.UserTag,
		sub.PrimaryURL(),
		truncate(sub.Content, maxContentLen),
		sub.SubmittedAt.UTC().Format(time.RFC3339),
		sub.ChannelID,
	}
}
