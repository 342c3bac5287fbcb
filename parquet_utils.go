package unga

import (
	"os"

	"github.com/parquet-go/parquet-go"
)

// DocumentRow is the flat export shape of the documents table.
type DocumentRow struct {
	Symbol    string `parquet:"symbol,required"`
	DocType   string `parquet:"doc_type,required"`
	Session   int    `parquet:"session,optional"`
	Title     string `parquet:"title,optional"`
	Date      string `parquet:"date,optional"`
	BodyText  string `parquet:"body_text,optional"`
	Metadata  string `parquet:"doc_metadata,optional"`
	BodySha   string `parquet:"body_sha256,optional"`
	WordCount int    `parquet:"word_count,optional"`
}

// UtteranceRow is the flat export shape of the utterances table.
type UtteranceRow struct {
	MeetingSymbol      string `parquet:"meeting_symbol,required"`
	SectionID          string `parquet:"section_id,optional"`
	AgendaItemNumber   string `parquet:"agenda_item_number,optional"`
	SpeakerName        string `parquet:"speaker_name,optional"`
	SpeakerAffiliation string `parquet:"speaker_affiliation,optional"`
	Text               string `parquet:"text,required"`
	WordCount          int    `parquet:"word_count,optional"`
	PositionInMeeting  int    `parquet:"position_in_meeting,optional"`
}

func WriteRecords[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var zero T
	w := parquet.NewWriter(f, parquet.SchemaOf(&zero), parquet.Compression(&parquet.Snappy))

	for _, rec := range records {
		recCopy := rec // Write takes the address
		if err := w.Write(&recCopy); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}
