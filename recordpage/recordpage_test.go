package recordpage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlohamalainen/un-ga-documents-go/marc"
)

const resolutionPage = `<!DOCTYPE html>
<html><head>
<meta name="citation_pdf_url" content="https://digitallibrary.un.org/record/4031567/files/A_RES_78_220-EN.pdf">
<meta name="citation_pdf_url" content="https://digitallibrary.un.org/record/4031567/files/A_RES_78_220-FR.pdf">
</head><body>
<div class="metadata-row"><div class="title">Symbol</div><div class="value">A/RES/78/220</div></div>
<div class="metadata-row"><div class="title">Title</div><div class="value">
  Strengthening of the coordination of emergency humanitarian assistance
  <span>: resolution</span>
</div></div>
<div class="metadata-row"><div class="title">Date</div><div class="value">2023-12-19</div></div>
<div class="metadata-row"><div class="title">Vote summary</div><div class="value">Adopted 151-6-27, 42nd plenary meeting</div></div>
<div class="metadata-row"><div class="title">Draft</div><div class="value">
  <a href="/record/4030001">A/78/L.45</a>
</div></div>
<div class="metadata-row"><div class="title">Committee report</div><div class="value">
  <a href="https://digitallibrary.un.org/record/4030100">A/78/481</a>
</div></div>
<div class="metadata-row"><div class="title">Meeting record</div><div class="value">
  <a href="record/4030200">A/78/PV.42</a>
</div></div>
<div class="metadata-row"><div class="title">Agenda information</div><div class="value">
  <a href="/search?p=A/78/251">A/78/251 35 Question of Palestine. PALESTINE QUESTION</a><br>
  <a href="/search?p=A/78/251">A/78/251 18i Combating sand and dust storms</a>
</div></div>
<div class="metadata-row"><div class="title">Access</div><div class="value">
  <strong>English:</strong> <em>A_RES_78_220-EN.pdf</em> - <a href="/record/4031567/files/A_RES_78_220-EN.pdf">PDF</a>
  <strong>Spanish:</strong> <em>A_RES_78_220-ES.pdf</em> - <a href="/record/4031567/files/A_RES_78_220-ES.pdf">PDF</a>
</div></div>
<div class="related-subjects">
  <a class="rs-link" href="#">HUMANITARIAN ASSISTANCE</a>
  <a class="rs-link" href="#"> </a>
  <a class="rs-link" href="#">EMERGENCY RELIEF</a>
</div>
</body></html>`

func TestParseResolutionPage(t *testing.T) {
	p, err := Parse(strings.NewReader(resolutionPage), "A_RES_78_220_record_4031567.html")
	require.NoError(t, err)

	assert.Equal(t, "4031567", p.ID)
	assert.Equal(t, "https://digitallibrary.un.org/record/4031567?v=pdf", p.URL)
	assert.Equal(t, "A/RES/78/220", p.Metadata.Symbol)
	assert.Equal(t, "Strengthening of the coordination of emergency humanitarian assistance : resolution", p.Metadata.Title)
	assert.Equal(t, "2023-12-19", p.Metadata.Date)
	assert.Empty(t, p.Metadata.Authors)

	require.NotNil(t, p.Voting)
	assert.Equal(t, VoteRecorded, p.Voting.VoteType)
	assert.Equal(t, 151, *p.Voting.Yes)
	assert.Equal(t, 6, *p.Voting.No)
	assert.Equal(t, 27, *p.Voting.Abstain)
	assert.Equal(t, "42nd plenary meeting", p.Voting.Meeting)

	assert.Equal(t, []Link{{Text: "A/78/L.45", URL: "https://digitallibrary.un.org/record/4030001"}}, p.RelatedDocuments.Drafts)
	assert.Equal(t, "https://digitallibrary.un.org/record/4030100", p.RelatedDocuments.CommitteeReports[0].URL)
	assert.Equal(t, "https://digitallibrary.un.org/record/4030200", p.RelatedDocuments.MeetingRecords[0].URL)

	require.Len(t, p.Agenda, 2)
	assert.Equal(t, "A/78/251_item_35", p.Agenda[0].ID)
	assert.Equal(t, "PALESTINE QUESTION", p.Agenda[0].Subjects)
	assert.Equal(t, "A/78/251_item_18i", p.Agenda[1].ID)

	// citation urls first, the Access row adds only the Spanish file
	require.Len(t, p.Files, 3)
	assert.Equal(t, "English", p.Files[0].Language)
	assert.Equal(t, "French", p.Files[1].Language)
	assert.Equal(t, File{Language: "Spanish", Filename: "A_RES_78_220-ES.pdf", URL: "https://digitallibrary.un.org/record/4031567/files/A_RES_78_220-ES.pdf"}, p.Files[2])
	assert.Len(t, p.PDFURLs, 2)

	assert.Equal(t, []string{"HUMANITARIAN ASSISTANCE", "EMERGENCY RELIEF"}, p.Subjects)
}

func TestParsePageWithoutRecordID(t *testing.T) {
	page := `<div class="metadata-row"><div class="title">Symbol</div><div class="value">A/78/L.3</div></div>`
	p, err := Parse(strings.NewReader(page), "A_78_L.3.html")
	require.NoError(t, err)

	assert.Equal(t, "A/78/L.3", p.ID)
	assert.Empty(t, p.URL)
	assert.Nil(t, p.Voting)
	assert.Nil(t, p.Agenda)
	assert.Empty(t, p.RelatedDocuments.Drafts)
}

func TestParseVoteSummary(t *testing.T) {
	v := ParseVoteSummary("Adopted without vote, 88th plenary meeting")
	assert.Equal(t, VoteWithout, v.VoteType)
	assert.Nil(t, v.Yes)
	assert.Equal(t, "88th plenary meeting", v.Meeting)

	v = ParseVoteSummary("Adopted by consensus")
	assert.Equal(t, VoteUnknown, v.VoteType)
	assert.Empty(t, v.Meeting)
}

func TestParseAgendaRef(t *testing.T) {
	tests := []struct {
		in      string
		id      string
		number  int
		sub     string
		title   string
		hasItem bool
	}{
		{"A/78/251 35 Question of Palestine. PALESTINE QUESTION", "A/78/251_item_35", 35, "", "Question of Palestine", true},
		{"A/78/251 [905] UN. GENERAL ASSEMBLY--PRESIDENT-ELECT--OATH OF OFFICE", "A/78/251_item_905", 905, "", "UN. GENERAL ASSEMBLY--PRESIDENT-ELECT--OATH OF OFFICE", true},
		{"A/78/251 18i Combating sand and dust storms. STORMS", "A/78/251_item_18i", 18, "i", "Combating sand and dust storms. STORMS", true},
		{"A/78/251 8[1] UN. GENERAL ASSEMBLY--GENERAL DEBATE", "A/78/251_item_81", 8, "1", "UN. GENERAL ASSEMBLY--GENERAL DEBATE", true},
		{"A/78/251 Annex", "A/78/251_item_unknown", 0, "", "Annex", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref, ok := ParseAgendaRef(tt.in)
			require.True(t, ok)
			assert.Equal(t, "A/78/251", ref.AgendaSymbol)
			assert.Equal(t, tt.id, ref.ID)
			assert.Equal(t, tt.sub, ref.SubItem)
			assert.Equal(t, tt.title, ref.Title)
			if tt.hasItem {
				require.NotNil(t, ref.ItemNumber)
				assert.Equal(t, tt.number, *ref.ItemNumber)
			} else {
				assert.Nil(t, ref.ItemNumber)
			}
		})
	}

	_, ok := ParseAgendaRef("Question of Palestine")
	assert.False(t, ok)
}

func TestFileNameAndURL(t *testing.T) {
	assert.Equal(t, "A_RES_78_220_record_4031567.html", FileName("A/RES/78/220", "4031567"))
	assert.Equal(t, "record_4031567.html", FileName("", "4031567"))
	assert.Equal(t, "A_RES_78_220.html", FileName("A/RES/78/220", ""))

	u, err := PageURL(marc.Metadata{Symbol: "A/RES/78/220"})
	require.NoError(t, err)
	assert.Equal(t, "https://docs.un.org/en/A/res/78/220", u)

	_, err = PageURL(marc.Metadata{})
	assert.Error(t, err)
}

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if p, ok := f.pages[url]; ok {
		return []byte(p), nil
	}
	return nil, errors.New("not found")
}

func TestDownloaderSkipsExistingAndCountsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "record_2.html"), []byte("<html/>"), 0o600))

	f := &fakeFetcher{pages: map[string]string{
		RecordURL("1"): "<html><body><div>ok</div></body></html>",
	}}
	d := &Downloader{Fetcher: f, Pretty: true}

	s, err := d.Download(context.Background(), []marc.Metadata{
		{RecordID: "1", Symbol: "A/RES/78/1"},
		{RecordID: "2"},
		{Symbol: "A/RES/78/3"},
		{},
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 4, Downloaded: 1, Existing: 1, Failed: 2, Fallback: 1}, s)
	assert.Equal(t, []string{RecordURL("1"), "https://docs.un.org/en/A/res/78/3"}, f.calls)

	saved, err := os.ReadFile(filepath.Join(dir, "A_RES_78_1_record_1.html"))
	require.NoError(t, err)
	assert.Contains(t, string(saved), "\n")

	p, err := ParseFile(context.Background(), filepath.Join(dir, "A_RES_78_1_record_1.html"))
	require.NoError(t, err)
	assert.Equal(t, "1", p.Metadata.RecordID)
}
