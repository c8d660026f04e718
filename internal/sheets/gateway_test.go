package sheets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

// fakeValues is an in-memory ValuesAPI.
type fakeValues struct {
	sheets map[string][][]string
	fail   bool
}

func newFakeValues() *fakeValues {
	return &fakeValues{sheets: map[string][][]string{}}
}

func (f *fakeValues) EnsureSheet(_ context.Context, title string) (bool, error) {
	if f.fail {
		return false, fmt.Errorf("remote unavailable")
	}
	if _, ok := f.sheets[title]; ok {
		return false, nil
	}
	f.sheets[title] = [][]string{}
	return true, nil
}

func (f *fakeValues) ReadAll(_ context.Context, title string) ([][]string, error) {
	if f.fail {
		return nil, fmt.Errorf("remote unavailable")
	}
	rows := f.sheets[title]
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (f *fakeValues) Append(_ context.Context, title string, row []string) error {
	if f.fail {
		return fmt.Errorf("remote unavailable")
	}
	f.sheets[title] = append(f.sheets[title], append([]string(nil), row...))
	return nil
}

func (f *fakeValues) Update(_ context.Context, title string, startRow, startCol int, rows [][]string) error {
	if f.fail {
		return fmt.Errorf("remote unavailable")
	}
	grid := f.sheets[title]
	for i, row := range rows {
		r := startRow + i
		for len(grid) <= r {
			grid = append(grid, []string{})
		}
		for j, cell := range row {
			c := startCol + j
			for len(grid[r]) <= c {
				grid[r] = append(grid[r], "")
			}
			grid[r][c] = cell
		}
	}
	f.sheets[title] = grid
	return nil
}

func (f *fakeValues) Clear(_ context.Context, title string) error {
	if f.fail {
		return fmt.Errorf("remote unavailable")
	}
	f.sheets[title] = [][]string{}
	return nil
}

type fakeMissions map[string]store.Mission

func (f fakeMissions) GetMissionByID(id string) (store.Mission, bool, error) {
	m, ok := f[id]
	return m, ok, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func activeMission(id, title string) store.Mission {
	return store.Mission{
		ID:       id,
		Title:    title,
		ThreadID: "thread-" + id,
		Status:   store.MissionActive,
		Deadline: time.Now().Add(time.Hour),
	}
}

func TestAppendRowCreatesSheetWithHeader(t *testing.T) {
	api := newFakeValues()
	mission := activeMission("m1", "Weekly Mission")
	g := NewGateway(api, fakeMissions{"m1": mission}, testLogger())

	sub := store.Submission{ID: "sub-1", Source: store.SourceDiscord, UserID: "u1"}
	if err := g.AppendRow(context.Background(), mission, sub); err != nil {
		t.Fatalf("AppendRow failed: %v", err)
	}

	rows := api.sheets["Weekly Mission"]
	if len(rows) != 2 {
		t.Fatalf("sheet has %d rows, want header + 1", len(rows))
	}
	if rows[0][0] != "Submission ID" || rows[0][1] != "Source" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "sub-1" {
		t.Errorf("data row = %v", rows[1])
	}
}

func TestAppendRowRefusedWhenNotActive(t *testing.T) {
	for _, status := range []store.MissionStatus{store.MissionClosed, store.MissionExported} {
		t.Run(string(status), func(t *testing.T) {
			api := newFakeValues()
			mission := activeMission("m1", "Closed Mission")
			mission.Status = status
			g := NewGateway(api, fakeMissions{"m1": mission}, testLogger())

			err := g.AppendRow(context.Background(), mission, store.Submission{ID: "sub-1"})
			if err != ErrMissionNotActive {
				t.Fatalf("AppendRow = %v, want ErrMissionNotActive", err)
			}
			if len(api.sheets) != 0 {
				t.Errorf("remote sheet mutated: %v", api.sheets)
			}
		})
	}
}

func TestUpdateVotesRewritesAggregates(t *testing.T) {
	api := newFakeValues()
	mission := activeMission("m1", "Vote Mission")
	g := NewGateway(api, fakeMissions{"m1": mission}, testLogger())

	sub := store.Submission{ID: "sub-1", Source: store.SourceDiscord}
	if err := g.AppendRow(context.Background(), mission, sub); err != nil {
		t.Fatalf("AppendRow failed: %v", err)
	}

	votes := []store.Vote{
		{JudgeID: "judge-a", Score: 4},
		{JudgeID: "judge-b", Score: 2},
	}
	if err := g.UpdateVotes(context.Background(), "m1", "sub-1", votes); err != nil {
		t.Fatalf("UpdateVotes failed: %v", err)
	}

	row := api.sheets["Vote Mission"][1]
	if row[7] != "2" {
		t.Errorf("vote count = %q, want 2", row[7])
	}
	if row[8] != "3.00" {
		t.Errorf("average = %q, want 3.00", row[8])
	}
	if row[9] != "judge-a:4, judge-b:2" {
		t.Errorf("votes cell = %q", row[9])
	}
}

func TestUpdateVotesNoRowIsNoop(t *testing.T) {
	api := newFakeValues()
	mission := activeMission("m1", "Sparse Mission")
	g := NewGateway(api, fakeMissions{"m1": mission}, testLogger())

	if err := g.AppendRow(context.Background(), mission, store.Submission{ID: "sub-1"}); err != nil {
		t.Fatalf("AppendRow failed: %v", err)
	}
	before := api.sheets["Sparse Mission"][1][7]
	if err := g.UpdateVotes(context.Background(), "m1", "sub-unknown", []store.Vote{{JudgeID: "j", Score: 5}}); err != nil {
		t.Fatalf("UpdateVotes for unknown row errored: %v", err)
	}
	if api.sheets["Sparse Mission"][1][7] != before {
		t.Error("unrelated row was mutated")
	}
}

func TestExportMissionRewritesSheet(t *testing.T) {
	api := newFakeValues()
	mission := activeMission("m1", "Export Mission")
	g := NewGateway(api, fakeMissions{"m1": mission}, testLogger())

	// Simulate stale incremental rows that the batch export must replace.
	if err := g.AppendRow(context.Background(), mission, store.Submission{ID: "stale"}); err != nil {
		t.Fatalf("AppendRow failed: %v", err)
	}

	subs := []store.Submission{
		{ID: "sub-1", Votes: []store.Vote{{JudgeID: "judge-a", Score: 5}}},
		{ID: "sub-2", Votes: []store.Vote{{JudgeID: "judge-b", Score: 3}}},
	}
	res := g.ExportMission(context.Background(), mission, subs)
	if !res.Success {
		t.Fatalf("ExportMission failed: %s", res.Err)
	}
	if res.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", res.RowCount)
	}

	rows := api.sheets["Export Mission"]
	if len(rows) != 3 {
		t.Fatalf("sheet has %d rows, want header + 2", len(rows))
	}
	if rows[1][0] != "sub-1" || rows[2][0] != "sub-2" {
		t.Errorf("exported rows = %v", rows[1:])
	}
	base := len(baseHeader())
	if rows[0][base] != judgeColumnLabel("judge-a") {
		t.Errorf("first judge column = %q", rows[0][base])
	}

	// Re-running the export is idempotent.
	res = g.ExportMission(context.Background(), mission, subs)
	if !res.Success || len(api.sheets["Export Mission"]) != 3 {
		t.Errorf("re-export not idempotent: %+v rows=%d", res, len(api.sheets["Export Mission"]))
	}
}

func TestExportMissionZeroSubmissions(t *testing.T) {
	api := newFakeValues()
	mission := activeMission("m1", "Empty Mission")
	g := NewGateway(api, fakeMissions{"m1": mission}, testLogger())

	res := g.ExportMission(context.Background(), mission, nil)
	if !res.Success || res.RowCount != 0 {
		t.Fatalf("ExportMission(empty) = %+v", res)
	}
	if len(api.sheets) != 0 {
		t.Errorf("empty export touched the remote sheet: %v", api.sheets)
	}
}

func TestExportMissionRemoteFailure(t *testing.T) {
	api := newFakeValues()
	mission := activeMission("m1", "Broken Mission")
	g := NewGateway(api, fakeMissions{"m1": mission}, testLogger())
	api.fail = true

	res := g.ExportMission(context.Background(), mission, []store.Submission{{ID: "sub-1"}})
	if res.Success {
		t.Fatal("export succeeded against failing remote")
	}
	if res.Err == "" {
		t.Error("failure carries no error message")
	}
}

func TestMigrationInsertsSourceColumn(t *testing.T) {
	api := newFakeValues()
	mission := activeMission("m1", "Legacy Mission")
	g := NewGateway(api, fakeMissions{"m1": mission}, testLogger())

	// Sheet written by the old schema: no Source column.
	api.sheets["Legacy Mission"] = [][]string{
		{"Submission ID", "User ID", "User Tag", "URL", "Content", "Submitted At", "Vote Count", "Average Score", "Votes"},
		{"sub-old", "user-9", "user#9", "https://example.com/x", "old entry", "2026-01-01T00:00:00Z", "1", "4.00", "judge-a:4"},
	}

	if err := g.AppendRow(context.Background(), mission, store.Submission{ID: "sub-new", Source: store.SourceDiscord}); err != nil {
		t.Fatalf("AppendRow failed: %v", err)
	}

	rows := api.sheets["Legacy Mission"]
	schema := newRowSchema(rows[0])
	srcCol, ok := schema.col("Source")
	if !ok || srcCol != sourceCol {
		t.Fatalf("Source column at %d (ok=%v), want %d", srcCol, ok, sourceCol)
	}

	// Every original cell survives, shifted around the inserted column.
	old := rows[1]
	if old[0] != "sub-old" || old[1] != store.SourceDiscord || old[2] != "user-9" || old[9] != "judge-a:4" {
		t.Errorf("migrated legacy row = %v", old)
	}
	if rows[2][0] != "sub-new" {
		t.Errorf("appended row = %v", rows[2])
	}
}

func TestAppendTelegramRow(t *testing.T) {
	api := newFakeValues()
	g := NewGateway(api, fakeMissions{}, testLogger())

	sub := store.Submission{
		ID:        "sub-tg",
		UserID:    "42",
		UserTag:   "tguser",
		URLs:      []string{"https://example.com/t"},
		Content:   "from telegram",
		ChannelID: "-100123",
		Source:    store.SourceTelegram,
	}
	if err := g.AppendTelegramRow(context.Background(), sub); err != nil {
		t.Fatalf("AppendTelegramRow failed: %v", err)
	}

	rows := api.sheets[telegramSheet]
	if len(rows) != 2 {
		t.Fatalf("telegram sheet has %d rows, want header + 1", len(rows))
	}
	if rows[0][0] != "Submission ID" || rows[0][6] != "Chat ID" {
		t.Errorf("telegram header = %v", rows[0])
	}
	if rows[1][0] != "sub-tg" || rows[1][6] != "-100123" {
		t.Errorf("telegram row = %v", rows[1])
	}
}
