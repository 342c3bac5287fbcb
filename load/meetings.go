package load

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/meeting"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

var contextSymbol = regexp.MustCompile(`\b[A-Z]/[\dA-Z]+(?:/[A-Z0-9.\-]+)+\b`)

// meetingKind distinguishes plenary verbatim records from committee summary
// records; both share the parsed meeting format.
type meetingKind struct {
	dir     string
	docType string
	title   string
	body    bool
}

var (
	plenary   = meetingKind{dir: "meetings", docType: "meeting", title: "Plenary meeting"}
	committee = meetingKind{dir: "committee-summary-records", docType: "committee_meeting", title: "Committee meeting", body: true}
)

// LoadMeetings reads parsed/pdfs/meetings: the meeting document, its
// statements, the documents they mention and the recorded votes.
func (l *Loader) LoadMeetings(ctx context.Context) error {
	return l.loadMeetings(ctx, plenary)
}

// LoadCommitteeMeetings reads parsed/pdfs/committee-summary-records. The
// statements are also concatenated into the document body.
func (l *Loader) LoadCommitteeMeetings(ctx context.Context) error {
	return l.loadMeetings(ctx, committee)
}

func (l *Loader) loadMeetings(ctx context.Context, kind meetingKind) error {
	files, err := jsonFiles(l.dir("pdfs", kind.dir))
	if err != nil {
		return err
	}
	return l.loadFiles(ctx, files, func(ctx context.Context, tx *store.Tx, path string) ([]string, error) {
		return l.loadMeeting(ctx, tx, path, kind)
	})
}

func readMeeting(path string) (meeting.Document, map[string]any, error) {
	var doc meeting.Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, nil, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return doc, nil, err
	}
	return doc, raw, nil
}

// meetingBody joins the preface and every statement under a speaker rule.
func meetingBody(doc meeting.Document) string {
	var parts []string
	if doc.Preface != "" {
		parts = append(parts, doc.Preface)
	}
	for _, s := range doc.Sections {
		for _, u := range s.Utterances {
			head := "\n" + strings.Repeat("=", 80) + "\n"
			if u.Speaker.Name != "" {
				head += u.Speaker.Name
				if u.Speaker.Affiliation != "" {
					head += " (" + u.Speaker.Affiliation + ")"
				}
				head += ":\n\n"
			}
			parts = append(parts, head+u.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (l *Loader) loadMeeting(ctx context.Context, tx *store.Tx, path string, kind meetingKind) ([]string, error) {
	doc, raw, err := readMeeting(path)
	if err != nil {
		return nil, err
	}
	if doc.Metadata.Symbol == "" {
		return nil, errSkip
	}
	symbol := unga.NormalizeSymbol(doc.Metadata.Symbol)

	title := kind.title
	if doc.Metadata.MeetingNumber > 0 {
		title = fmt.Sprintf("%s %d", kind.title, doc.Metadata.MeetingNumber)
	}
	row := store.Document{
		Symbol:   symbol,
		DocType:  kind.docType,
		Session:  unga.SessionFromSymbol(symbol),
		Title:    title,
		Date:     meetingDate(doc.Metadata.Datetime),
		Metadata: raw,
	}
	if kind.body {
		row.BodyText = meetingBody(doc)
	}

	meetingID, err := tx.UpsertDocument(ctx, row, store.Fill{DocType: true, Metadata: true})
	if err != nil {
		return nil, err
	}

	// reloading a meeting replaces its statements
	if err := tx.DeleteUtterances(ctx, meetingID); err != nil {
		return nil, fmt.Errorf("failed to clear utterances: %w", err)
	}

	position := 0
	for _, section := range doc.Sections {
		sectionID := section.ID
		if sectionID == "" {
			sectionID = fmt.Sprintf("%s_section_%s", symbol, section.AgendaItemNumber)
		}

		for i, u := range section.Utterances {
			position++
			if strings.TrimSpace(u.Text) == "" {
				continue
			}
			if err := loadUtterance(ctx, tx, meetingID, sectionID, section, u, position, i+1); err != nil {
				return nil, err
			}
		}
	}

	return []string{symbol}, nil
}

func utteranceMetadata(u meeting.Utterance) (map[string]any, error) {
	meta := map[string]any{}
	if u.ResolutionMetadata != nil {
		b, err := json.Marshal(u.ResolutionMetadata)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &meta); err != nil {
			return nil, err
		}
	}
	if len(u.DraftResolutionMentions) > 0 {
		meta["draft_resolution_mentions"] = u.DraftResolutionMentions
	}
	return meta, nil
}

func loadUtterance(ctx context.Context, tx *store.Tx, meetingID int64, sectionID string, section meeting.Section, u meeting.Utterance, inMeeting, inSection int) error {
	var speaker int64
	if u.Speaker.Affiliation != "" {
		id, err := tx.GetOrCreateActor(ctx, u.Speaker.Affiliation)
		if err != nil {
			return err
		}
		speaker = id
	}

	meta, err := utteranceMetadata(u)
	if err != nil {
		return err
	}

	uid, err := tx.AddUtterance(ctx, store.Utterance{
		MeetingID:          meetingID,
		SectionID:          sectionID,
		AgendaItemNumber:   section.AgendaItemNumber,
		SpeakerActorID:     speaker,
		SpeakerName:        u.Speaker.Name,
		SpeakerRole:        u.Speaker.Role,
		SpeakerRaw:         u.Speaker.Raw,
		SpeakerAffiliation: u.Speaker.Affiliation,
		Text:               u.Text,
		WordCount:          u.WordCount,
		PositionInMeeting:  inMeeting,
		PositionInSection:  inSection,
		Metadata:           meta,
	})
	if err != nil {
		return err
	}

	refs := make([]meeting.DocumentRef, 0, len(u.Documents)+len(section.Documents))
	for _, s := range u.Documents {
		refs = append(refs, meeting.DocumentRef{Symbol: s})
	}
	refs = append(refs, section.Documents...)

	for _, ref := range refs {
		symbol := ref.Symbol
		if symbol == "" {
			symbol = contextSymbol.FindString(ref.Context)
		}
		if symbol == "" {
			continue
		}

		docID, err := tx.DocumentID(ctx, unga.NormalizeSymbol(symbol))
		if err != nil {
			return err
		}
		if docID == 0 {
			continue
		}
		if _, err := tx.LinkUtteranceDocument(ctx, uid, docID, "mentioned", ref.Context); err != nil {
			return err
		}
	}

	rm := u.ResolutionMetadata
	if rm == nil || rm.ResolutionSymbol == "" {
		return nil
	}
	resID, err := tx.DocumentID(ctx, unga.NormalizeSymbol(rm.ResolutionSymbol))
	if err != nil || resID == 0 {
		return err
	}

	if _, err := tx.LinkUtteranceDocument(ctx, uid, resID, "voting_on", ""); err != nil {
		return err
	}
	if err := tx.AddRelationship(ctx, meetingID, resID, "meeting_record_for", nil); err != nil {
		return err
	}

	if rm.VoteDetails == nil {
		return nil
	}
	for _, group := range []struct {
		voteType  string
		countries []string
	}{
		{store.InFavour, rm.VoteDetails.InFavour},
		{store.Against, rm.VoteDetails.Against},
		{store.Abstaining, rm.VoteDetails.Abstaining},
	} {
		for _, c := range group.countries {
			if strings.TrimSpace(c) == "" {
				continue
			}
			actor, err := tx.GetOrCreateActor(ctx, c)
			if err != nil {
				return err
			}
			if _, err := tx.AddVote(ctx, resID, actor, group.voteType, "plenary"); err != nil {
				return err
			}
		}
	}
	return nil
}
