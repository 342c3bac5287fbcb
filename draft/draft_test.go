package draft

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thirdCommitteeDraft = `United Nations A/C.3/78/L.41
General Assembly Distr.: Limited
12 October 2023
Original: English
Seventy-eighth session
Third Committee
Agenda item 71
Promotion and protection of human rights
Draft resolution submitted by Argentina and Chile
Protection of migrants
and their families
The General Assembly,
Recalling its resolution 77/1,
Noting with concern the situation,
1. Decides to remain seized;
2. Requests the Secretary-General:
(a) To report;
(b) To submit an annex;
`

func TestExtractMetadata(t *testing.T) {
	md := ExtractMetadata(thirdCommitteeDraft)

	assert.Equal(t, "A/C.3/78/L.41", md.Symbol)
	assert.Equal(t, "Limited", md.Distribution)
	assert.Equal(t, "12 October 2023", md.Date)
	assert.Equal(t, "English", md.OriginalLanguage)
	assert.Equal(t, "Seventy-eighth session", md.SessionName)
	assert.Equal(t, 78, md.SessionNumber)
	require.NotNil(t, md.AgendaItem)
	assert.Equal(t, AgendaItem{Number: 71, Title: "Promotion and protection of human rights"}, *md.AgendaItem)
	assert.Equal(t, "Draft resolution submitted by Argentina and Chile", md.SubmissionType)
	assert.Equal(t, "Protection of migrants and their families", md.Title)
}

func TestExtractMetadataSplitSymbol(t *testing.T) {
	md := ExtractMetadata("A\nUnited Nations /78/L.3\nGeneral Assembly\n")
	assert.Equal(t, "A/78/L.3", md.Symbol)
}

func TestParse(t *testing.T) {
	doc := Parse(thirdCommitteeDraft)

	assert.True(t, strings.HasPrefix(doc.DraftText, "The General Assembly,"))
	assert.Equal(t, Stats{WordCount: 29, LineCount: 7, HasAnnex: true}, doc.Stats)

	seg := doc.TextSegments
	assert.Equal(t, []string{
		"The General Assembly,",
		"Recalling its resolution 77/1,",
		"Noting with concern the situation,",
	}, seg.PreambleParagraphs)
	require.Len(t, seg.OperativeParagraphs, 2)
	assert.Equal(t, "1. Decides to remain seized;", seg.OperativeParagraphs[0])
	assert.Equal(t, []string{"(a) To report;", "(b) To submit an annex;"}, SubParagraphs(seg.OperativeParagraphs[1]))
	assert.Nil(t, SubParagraphs(seg.OperativeParagraphs[0]))
}

func TestSegmentWithoutOperativePart(t *testing.T) {
	seg := Segment("Recalling the Charter,\nwith appreciation\nWelcoming the report,")

	assert.Empty(t, seg.Operative)
	assert.Empty(t, seg.OperativeParagraphs)
	assert.Equal(t, []string{"Recalling the Charter, with appreciation", "Welcoming the report,"}, seg.PreambleParagraphs)
}

func TestExtractDraftTextFallsBackPastHeader(t *testing.T) {
	lines := make([]string, 0, 12)
	for i := 0; i < 11; i++ {
		lines = append(lines, "Agenda line")
	}
	lines = append(lines, "Decides to convene a meeting")

	assert.Equal(t, "Decides to convene a meeting", ExtractDraftText(strings.Join(lines, "\n")))
}

func TestParseFileUsesFileNameWithoutSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "A_78_L.3.txt")
	require.NoError(t, os.WriteFile(path, []byte("The General Assembly,\nDecides to adjourn."), 0o600))

	doc, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "A/78/L.3", doc.Metadata.Symbol)
	assert.False(t, doc.Stats.HasAnnex)
}
