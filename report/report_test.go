package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thirdCommitteeReport = `United Nations A/78/481/Add.3
General Assembly Distr.: General
5 December 2023
Original: English
Seventy-eighth session
Agenda item 71 (b)
Promotion and protection of human rights: human rights questions
Report of the Third Committee
Rapporteur: Ms. Jane Doe*
(Ireland)
I. Introduction
1. At its 2nd plenary meeting, the General Assembly decided to allocate the item.
II. Consideration of proposals
A. Draft resolution A/C.3/78/L.39
2. At its 50th meeting, the Committee had before it a draft resolution entitled
"Protection of migrants", submitted by Mexico, Chile and Peru.
3. At the same meeting, Brazil and Uruguay joined in sponsoring the draft resolution.
4. At the same meeting, the Committee adopted draft resolution A/C.3/78/L.39 without a vote (see para. 33, draft resolution I).
B. Draft resolution A/C.3/78/L.40/Rev.1
5. At its 51st meeting, the Committee had before it a revised draft resolution entitled
“Situation of human rights in the region”, submitted by Canada.
6. The Committee adopted draft resolution A/C.3/78/L.40/Rev.1 by a recorded vote of 80 to 25, with 60 abstentions (see para. 33, draft resolution II). The voting was as follows:
In favour:
Albania, Andorra, Micronesia (Federated States of).
Against:
Belarus, China.
Abstaining:
Brazil, India.
7. After the vote, statements were made.
`

func TestExtractMetadata(t *testing.T) {
	md := ExtractMetadata(thirdCommitteeReport)

	assert.Equal(t, "A/78/481/Add.3", md.Symbol)
	assert.Equal(t, "Seventy-eighth session", md.Session)
	assert.Equal(t, 78, md.SessionNumber)
	assert.Equal(t, "Third Committee", md.Committee)
	assert.Equal(t, "Ms. Jane Doe", md.Rapporteur)
	require.NotNil(t, md.AgendaItem)
	assert.Equal(t, AgendaItem{Number: "71", SubItem: "b"}, *md.AgendaItem)
}

func TestParseItems(t *testing.T) {
	items := ParseItems(thirdCommitteeReport)
	require.Len(t, items, 2)

	a := items[0]
	assert.Equal(t, "A", a.SectionLetter)
	assert.Equal(t, "A/C.3/78/L.39", a.DraftSymbol)
	assert.Equal(t, 3, a.DraftCommittee)
	assert.Equal(t, 78, a.DraftSession)
	assert.Equal(t, 39, a.DraftNumber)
	assert.Zero(t, a.DraftRevision)
	assert.Equal(t, "Protection of migrants", a.Title)
	assert.Equal(t, "Mexico", a.SubmittedBy)
	assert.Equal(t, []string{"Brazil and Uruguay"}, a.Sponsors)
	assert.Equal(t, "adopted", a.AdoptionStatus)
	assert.Equal(t, &Vote{Type: WithoutVote}, a.Vote)
	assert.Equal(t, &TextReference{Paragraph: 33, DraftNumber: "I"}, a.TextReference)
	assert.Nil(t, a.VoteDetails)
	assert.NotContains(t, a.Text, "L.40")

	b := items[1]
	assert.Equal(t, "A/C.3/78/L.40/Rev.1", b.DraftSymbol)
	assert.Equal(t, 1, b.DraftRevision)
	assert.Equal(t, "Situation of human rights in the region", b.Title)
	assert.Empty(t, b.Sponsors)
	assert.Equal(t, &Vote{Type: RecordedVote, InFavour: 80, Against: 25, Abstentions: 60}, b.Vote)
	assert.Equal(t, "II", b.TextReference.DraftNumber)
	require.NotNil(t, b.VoteDetails)
	assert.Equal(t, []string{"Albania", "Andorra", "Micronesia (Federated States of)"}, b.VoteDetails.InFavour)
	assert.Equal(t, []string{"Belarus", "China"}, b.VoteDetails.Against)
	assert.Equal(t, []string{"Brazil", "India"}, b.VoteDetails.Abstaining)
}

func TestParse(t *testing.T) {
	doc := Parse(thirdCommitteeReport, "A_78_481_Add.3.pdf")

	assert.Equal(t, Stats{ItemCount: 2, ItemsWithVotes: 1}, doc.Stats)
	assert.Contains(t, doc.Introduction, "decided to allocate the item")
	assert.NotContains(t, doc.Introduction, "II.")
	assert.Equal(t, "A_78_481_Add.3.pdf", doc.SourceFile)
}

func TestParseWithoutProposals(t *testing.T) {
	doc := Parse("Report of the Sixth Committee\nNothing was proposed.", "")
	assert.Empty(t, doc.Items)
	assert.Empty(t, doc.Introduction)
	assert.Equal(t, "Sixth Committee", doc.Metadata.Committee)
}

func TestParseFileFallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "A_78_482.txt")
	require.NoError(t, os.WriteFile(path, []byte("Report of the Fifth Committee\n"), 0o600))

	doc, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "A/78/482", doc.Metadata.Symbol)
}
