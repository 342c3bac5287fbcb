package load

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/marc"
	"github.com/carlohamalainen/un-ga-documents-go/meeting"
	"github.com/carlohamalainen/un-ga-documents-go/recordpage"
	"github.com/carlohamalainen/un-ga-documents-go/search"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

type fakeIndex struct {
	symbols []string
}

func (f *fakeIndex) IndexDocument(_ context.Context, d search.Document) error {
	f.symbols = append(f.symbols, d.Symbol)
	return nil
}

func intp(n int) *int { return &n }

func writeFixture(t *testing.T, root string, rel string, v any) {
	t.Helper()
	require.NoError(t, unga.WriteJSON(filepath.Join(root, "parsed", rel), v))
}

func fixtureRoot(t *testing.T) string {
	root := t.TempDir()

	writeFixture(t, root, "html/resolutions/A_RES_78_220.json", recordpage.Page{
		ID:       "4031567",
		Metadata: recordpage.Metadata{Symbol: "A/RES/78/220", Title: "Emergency humanitarian assistance", Date: "2023-12-19"},
		Voting:   &recordpage.VoteSummary{VoteType: recordpage.VoteRecorded, Yes: intp(151), No: intp(6), Abstain: intp(27)},
		RelatedDocuments: recordpage.Related{
			Drafts:         []recordpage.Link{{Text: "A/78/L.45", URL: "https://digitallibrary.un.org/record/1"}},
			MeetingRecords: []recordpage.Link{{Text: "A/78/PV.42"}},
		},
		Agenda: []recordpage.AgendaRef{{ID: "A/78/251_item_35", AgendaSymbol: "A/78/251", ItemNumber: intp(35), Title: "Question of Palestine"}},
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "parsed/html/resolutions/bad.json"), []byte("{not json"), 0o600))
	writeFixture(t, root, "html/resolutions/nosymbol.json", map[string]any{"metadata": map[string]any{"title": "x"}})

	writeFixture(t, root, "voting/A_RES_78_221.json", marc.Voting{
		RecordID: "9",
		Symbol:   "A/RES/78/221",
		Title:    "Oceans",
		VoteType: "Recorded",
		Counts:   &marc.Counts{Yes: 1, No: 1, Abstain: 1, NonVoting: 1, Total: 4},
		Votes: []marc.Vote{
			{Country: "FRANCE", Vote: "Y"},
			{Country: "KENYA", Vote: "N"},
			{Country: "CHILE", Vote: "A"},
			{Country: "PERU", Vote: "X"},
		},
	})

	writeFixture(t, root, "html/drafts/A_78_L.45.json", map[string]any{"metadata": map[string]any{"symbol": "A/78/L.45", "title": "Draft on assistance"}})
	writeFixture(t, root, "pdfs/drafts/A_78_L.45.json", map[string]any{"draft_text": "The General Assembly, Recalling its resolutions"})
	writeFixture(t, root, "pdfs/drafts/A_78_L.46.json", map[string]any{
		"metadata":      map[string]any{"symbol": "A/78/L.46", "title": "Oceans draft"},
		"text_segments": map[string]any{"preamble": "Recalling", "operative": "1. Decides"},
	})

	writeFixture(t, root, "pdfs/meetings/A_78_PV.42.json", meeting.Document{
		Metadata: meeting.Metadata{Symbol: "A/78/PV.42", MeetingNumber: 42, Datetime: "Tuesday, 19 December 2023, 10 a.m."},
		Sections: []meeting.Section{{
			AgendaItemNumber: "5",
			Documents:        []meeting.DocumentRef{{Symbol: "A/78/L.45", Context: "draft resolution A/78/L.45"}},
			Utterances: []meeting.Utterance{
				{
					Speaker:   meeting.Speaker{Raw: "The President", Name: "The President"},
					Text:      "The Assembly will now take a decision on draft resolution A/78/L.45.",
					Documents: []string{"A/78/L.45"},
					ResolutionMetadata: &meeting.ResolutionMetadata{
						ResolutionSymbol: "A/RES/78/220",
						VoteDetails:      &meeting.VoteDetails{InFavour: []string{"KENYA", "FRANCE"}, Against: []string{"CHILE"}},
					},
				},
				{
					Speaker: meeting.Speaker{Raw: "Mr. Kariuki (Kenya)", Name: "Kariuki", Affiliation: "KENYA"},
					Text:    "Kenya supports the draft resolution.",
				},
				{Speaker: meeting.Speaker{Raw: "The President"}},
			},
		}},
	})

	return root
}

func TestRunLoadsEveryStage(t *testing.T) {
	ctx := context.Background()
	root := fixtureRoot(t)

	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "unga.db"))
	require.NoError(t, err)
	defer s.Close()

	idx := &fakeIndex{}
	l := New(s, root)
	l.Index = idx

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, Stats{Loaded: 5, Skipped: 1, Errors: 1}, l.Stats)
	assert.Equal(t, []string{"A/RES/78/220", "A/RES/78/221", "A/78/L.45", "A/78/L.46", "A/78/PV.42"}, idx.symbols)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"documents":              6,
		"actors":                 3,
		"votes":                  6,
		"document_relationships": 3,
		"utterances":             2,
		"utterance_documents":    3,
	}, counts)

	res, err := s.Document(ctx, "A/RES/78/220")
	require.NoError(t, err)
	assert.Equal(t, "resolution", res.DocType)
	assert.Equal(t, "2023-12-19", res.Date)
	assert.Equal(t, 78, res.Session)
	assert.Equal(t, map[string]any{"in_favour": float64(151), "against": float64(6), "abstaining": float64(27)}, res.Metadata["vote_tallies"])

	draft, err := s.Document(ctx, "A/78/L.45")
	require.NoError(t, err)
	assert.Equal(t, "draft", draft.DocType)
	assert.Equal(t, "Draft on assistance", draft.Title)
	assert.Equal(t, "The General Assembly, Recalling its resolutions", draft.BodyText)
	assert.Equal(t, "https://digitallibrary.un.org/record/1", draft.Metadata["source_url"])

	pdfOnly, err := s.Document(ctx, "A/78/L.46")
	require.NoError(t, err)
	assert.Equal(t, "Recalling\n\n1. Decides", pdfOnly.BodyText)
	assert.Equal(t, "Oceans draft", pdfOnly.Title)

	pv, err := s.Document(ctx, "A/78/PV.42")
	require.NoError(t, err)
	assert.Equal(t, "meeting", pv.DocType)
	assert.Equal(t, "Plenary meeting 42", pv.Title)
	assert.Equal(t, "2023-12-19", pv.Date)

	agenda, err := s.Document(ctx, "A/78/251_item_35")
	require.NoError(t, err)
	assert.Equal(t, "agenda_item", agenda.DocType)
	assert.Equal(t, "Question of Palestine", agenda.Title)

	q, err := s.Query(ctx, `
	SELECT a.name, v.vote_type FROM votes v
	JOIN actors a ON a.id = v.actor_id
	JOIN documents d ON d.id = v.document_id
	WHERE d.symbol = 'A/RES/78/220' ORDER BY a.name`, 0)
	require.NoError(t, err)
	require.Equal(t, 3, q.RowCount)
	assert.Equal(t, "CHILE", q.Rows[0]["name"].Full)
	assert.Equal(t, "against", q.Rows[0]["vote_type"].Full)

	q, err = s.Query(ctx, `
	SELECT ud.reference_type, d.symbol FROM utterance_documents ud
	JOIN documents d ON d.id = ud.document_id
	WHERE ud.reference_type = 'voting_on'`, 0)
	require.NoError(t, err)
	require.Equal(t, 1, q.RowCount)
	assert.Equal(t, "A/RES/78/220", q.Rows[0]["symbol"].Full)

	// reloading a meeting replaces its utterances instead of duplicating them
	require.NoError(t, l.Run(ctx, "meetings"))
	counts, err = s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["utterances"])
	assert.Equal(t, 6, counts["votes"])
}

func TestRunSkipsMissingStages(t *testing.T) {
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "unga.db"))
	require.NoError(t, err)
	defer s.Close()

	l := New(s, t.TempDir())
	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, Stats{}, l.Stats)
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, []string{
		"resolutions", "voting", "drafts", "committee-reports", "agenda", "meetings", "committee-meetings",
	}, StageNames())
}

func TestPDFBodyText(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		dir  string
		want string
	}{
		{"introduction", map[string]any{"introduction": "intro", "draft_text": "draft"}, "committee-reports", "intro"},
		{"introduction only for reports", map[string]any{"introduction": "intro", "draft_text": "draft"}, "drafts", "draft"},
		{"raw text", map[string]any{"raw_text": map[string]any{"full_text": "full"}}, "drafts", "full"},
		{"segments", map[string]any{"text_segments": map[string]any{"preamble": "", "operative": "1. Decides"}}, "drafts", "1. Decides"},
		{"agenda items", map[string]any{"items": []any{map[string]any{"text": "1. Opening"}, map[string]any{"text": " "}, map[string]any{"text": "2. Minute"}}}, "agenda", "1. Opening\n\n2. Minute"},
		{"nothing", map[string]any{"metadata": map[string]any{}}, "drafts", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pdfBodyText(tt.data, tt.dir))
		})
	}
}

func TestDates(t *testing.T) {
	assert.Equal(t, "2023-10-16", isoDate("[New York] : UN, 16 Oct. 2023"))
	assert.Equal(t, "", isoDate("sometime"))
	assert.Equal(t, "2024-01-09", meetingDate("Tuesday, 9 January 2024, 10 a.m."))
	assert.Equal(t, "", meetingDate("9 January 2024"))
}

func TestMeetingBody(t *testing.T) {
	doc := meeting.Document{
		Preface: "Summary record of the 33rd meeting",
		Sections: []meeting.Section{{Utterances: []meeting.Utterance{
			{Speaker: meeting.Speaker{Name: "Ms. Ali", Affiliation: "Egypt"}, Text: "We support it."},
			{Text: "Untitled."},
		}}},
	}
	rule := "\n" + strings.Repeat("=", 80) + "\n"
	assert.Equal(t, "Summary record of the 33rd meeting\n\n"+rule+"Ms. Ali (Egypt):\n\nWe support it.\n\n"+rule+"Untitled.", meetingBody(doc))
}
