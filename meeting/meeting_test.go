package meeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plenaryRecord = `United Nations A/78/PV.51
General Assembly
Seventy-eighth session
51st plenary meeting
Tuesday, 5 December 2023, 10 a.m.
New York
President: Mr. Dennis Francis (Trinidad and Tobago)
In the absence of the President, Mr. Kariuki (Kenya), Vice-President, took the Chair.
The meeting was called to order at 10.05 a.m.
Agenda item 15 (continued)
Culture of peace
Report of the Third Committee (A/78/481)
The Acting President: The Assembly has before it several draft resolutions.
Ms. Smith (Canada): We support draft resolution II and draft resolution IV.
The Acting President: We will now take a decision on draft resolution I, entitled “Promotion of peace”.
The draft resolution was adopted without a vote (resolution 78/225).
Agenda item 16
Mr. Lee (Republic of Korea): I speak on A/78/L.3.
`

func TestExtractMetadata(t *testing.T) {
	md := ExtractMetadata(plenaryRecord)

	assert.Equal(t, "A/78/PV.51", md.Symbol)
	assert.Equal(t, "Seventy-eighth session", md.Session)
	assert.Equal(t, 51, md.MeetingNumber)
	assert.Equal(t, "Tuesday, 5 December 2023, 10 a.m.", md.Datetime)
	assert.Equal(t, "New York", md.Location)
	assert.Equal(t, "Mr. Dennis Francis (Trinidad and Tobago)", md.President)
	assert.Equal(t, "In the absence of the President, Mr. Kariuki (Kenya), Vice-President, took the Chair.", md.Chair)
	assert.Equal(t, "10", md.CalledToOrderAt)
	assert.Equal(t, []string{"Agenda item 15 (continued)", "Agenda item 16"}, md.AgendaItems)
}

func TestParseSpeaker(t *testing.T) {
	tests := []struct {
		header string
		want   Speaker
	}{
		{
			header: "The Acting President",
			want:   Speaker{Raw: "The Acting President", Name: "The Acting President", Role: "The Acting President"},
		},
		{
			header: "Ms. Smith (Canada)",
			want:   Speaker{Raw: "Ms. Smith (Canada)", Name: "Smith", Honorific: "Ms.", Affiliation: "Canada"},
		},
		{
			header: "Mr. Lee ........ (Republic of Korea)",
			want:   Speaker{Raw: "Mr. Lee (Republic of Korea)", Name: "Lee", Honorific: "Mr.", Affiliation: "Republic of Korea"},
		},
		{
			header: "H.E. Ramos",
			want:   Speaker{Raw: "H.E. Ramos", Name: "H.E. Ramos"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSpeaker(tt.header))
		})
	}
}

func TestParse(t *testing.T) {
	doc := Parse(plenaryRecord, "A_78_PV.51.txt")

	assert.Equal(t, "A/78/PV.51", doc.ID)
	assert.Equal(t, "A_78_PV.51.txt", doc.SourceFile)
	assert.Contains(t, doc.Preface, "51st plenary meeting")
	assert.Equal(t, Stats{SectionCount: 2, UtteranceCount: 4, UniqueSpeakers: 3, DocumentReferences: 2}, doc.Stats)

	require.Len(t, doc.Sections, 2)
	s := doc.Sections[0]
	assert.Equal(t, "A/78/PV.51_section_15", s.ID)
	assert.Equal(t, "15", s.AgendaItemNumber)
	assert.Equal(t, "(continued)", s.AgendaItemNote)
	assert.Equal(t, "Culture of peace", s.SectionTitle)
	assert.Equal(t, "Culture of peace Report of the Third Committee (A/78/481)", s.SectionSummary)
	assert.Equal(t, []DocumentRef{{Symbol: "A/78/481", Context: "Report of the Third Committee (A/78/481)"}}, s.Documents)

	require.Len(t, s.Utterances, 3)

	announce := s.Utterances[0]
	assert.Equal(t, "A/78/PV.51_section_15_utterance_1", announce.ID)
	assert.Equal(t, "The Acting President", announce.Speaker.Role)
	assert.Nil(t, announce.ResolutionMetadata)

	canada := s.Utterances[1]
	assert.Equal(t, []string{"II", "IV"}, canada.DraftResolutionMentions)
	require.NotNil(t, canada.ResolutionMetadata)
	assert.Equal(t, "II", canada.ResolutionMetadata.DraftResolutionIdentifier)
	assert.Equal(t, []string{"II", "IV"}, canada.ResolutionMetadata.MentionedResolutions)

	decision := s.Utterances[2]
	assert.Equal(t, "We will now take a decision on draft resolution I, entitled “Promotion of peace”. "+
		"The draft resolution was adopted without a vote (resolution 78/225).", decision.Text)
	require.NotNil(t, decision.ResolutionMetadata)
	rm := decision.ResolutionMetadata
	assert.Equal(t, "I", rm.DraftResolutionIdentifier)
	assert.Equal(t, "Promotion of peace", rm.ResolutionTitle)
	assert.Equal(t, "78/225", rm.ResolutionNumber)
	assert.Equal(t, "A/RES/78/225", rm.ResolutionSymbol)
	assert.Equal(t, "adopted", rm.AdoptionStatus)
	assert.Equal(t, VoteWithout, rm.VoteType)
	assert.Equal(t, "without a vote", rm.VoteInfo)
	assert.Empty(t, rm.MentionedResolutions)

	korea := doc.Sections[1].Utterances[0]
	assert.Equal(t, "A/78/PV.51_section_16_utterance_1", korea.ID)
	assert.Equal(t, "Republic of Korea", korea.Speaker.Affiliation)
	assert.Equal(t, []string{"A/78/L.3"}, korea.Documents)
	assert.Equal(t, 4, korea.WordCount)
	assert.Empty(t, doc.Sections[1].SectionTitle)
}

func TestParseWithoutSymbolLeavesIDsEmpty(t *testing.T) {
	doc := Parse("Agenda item 7\nThe President: I give the floor.\n", "x.txt")

	require.Len(t, doc.Sections, 1)
	assert.Empty(t, doc.ID)
	assert.Empty(t, doc.Sections[0].ID)
	assert.Empty(t, doc.Sections[0].Utterances[0].ID)
}

func TestExtractResolutionMetadataRecordedVote(t *testing.T) {
	text := "A recorded vote was taken. In favour: Albania, Micronesia (Federated States of), Nepal. " +
		"Against: Israel, United States. Abstaining: Cameroon, Fiji " +
		"Draft resolution III was adopted by 120 votes to 10, with 30 abstentions (resolution 78/190)."

	rm := ExtractResolutionMetadata(text)
	require.NotNil(t, rm)

	require.NotNil(t, rm.VoteDetails)
	assert.Equal(t, []string{"Albania", "Micronesia (Federated States of)", "Nepal"}, rm.VoteDetails.InFavour)
	assert.Equal(t, []string{"Israel", "United States"}, rm.VoteDetails.Against)
	assert.Equal(t, []string{"Cameroon", "Fiji"}, rm.VoteDetails.Abstaining)

	assert.Equal(t, "III", rm.DraftResolutionIdentifier)
	assert.Equal(t, "A/RES/78/190", rm.ResolutionSymbol)
	assert.Equal(t, VoteRecorded, rm.VoteType)
	require.NotNil(t, rm.VoteInFavor)
	assert.Equal(t, 120, *rm.VoteInFavor)
	assert.Equal(t, 10, *rm.VoteAgainst)
	assert.Equal(t, 30, *rm.VoteAbstentions)
	assert.Equal(t, "120 to 10", rm.VoteInfo)
}

func TestExtractResolutionMetadataRecordedVoteOf(t *testing.T) {
	rm := ExtractResolutionMetadata("The draft decision was adopted by a recorded vote of 150 to 4, with 12 abstentions.")
	require.NotNil(t, rm)
	assert.Equal(t, "150 to 4, with 12 abstentions", rm.VoteInfo)
	assert.Equal(t, 12, *rm.VoteAbstentions)
}

func TestExtractResolutionMetadataNothing(t *testing.T) {
	assert.Nil(t, ExtractResolutionMetadata("I thank the representative for her statement."))
}

func TestDraftMentionsIgnoresWords(t *testing.T) {
	assert.Equal(t, []string{"V"}, DraftMentions("draft resolution in document A/78/L.2 and draft resolution V"))
}

func TestParseStateListStripsPageFurniture(t *testing.T) {
	got := ParseStateList("Chad, Côte d'Ivoire 5/34 A/78/PV.50, Democratic People's Republic of Korea.")
	assert.Equal(t, []string{"Chad", "Côte d'Ivoire", "Democratic People's Republic of Korea"}, got)
}
