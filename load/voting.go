package load

import (
	"context"
	"strings"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/marc"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

var voteCodes = map[string]string{
	"Y": store.InFavour,
	"N": store.Against,
	"A": store.Abstaining,
}

// LoadVoting reads the per-record voting files written by parse-voting from
// parsed/voting. Countries that did not vote are not stored.
func (l *Loader) LoadVoting(ctx context.Context) error {
	files, err := jsonFiles(l.dir("voting"))
	if err != nil {
		return err
	}
	return l.loadFiles(ctx, files, loadVotingRecord)
}

func loadVotingRecord(ctx context.Context, tx *store.Tx, path string) ([]string, error) {
	var v marc.Voting
	if err := unga.ReadJSON(path, &v); err != nil {
		return nil, err
	}
	if v.Symbol == "" || strings.HasPrefix(v.Symbol, "vote_") {
		return nil, errSkip
	}
	symbol := unga.NormalizeSymbol(v.Symbol)

	id, err := tx.UpsertDocument(ctx, store.Document{
		Symbol:  symbol,
		DocType: "resolution",
		Session: unga.SessionFromSymbol(symbol),
		Title:   v.Title,
		Date:    isoDate(v.Date),
	}, store.Fill{DocType: true})
	if err != nil {
		return nil, err
	}

	for _, vote := range v.Votes {
		voteType, ok := voteCodes[strings.ToUpper(strings.TrimSpace(vote.Vote))]
		if !ok || strings.TrimSpace(vote.Country) == "" {
			continue
		}
		actor, err := tx.GetOrCreateActor(ctx, vote.Country)
		if err != nil {
			return nil, err
		}
		if _, err := tx.AddVote(ctx, id, actor, voteType, "plenary"); err != nil {
			return nil, err
		}
	}

	if v.Counts != nil {
		err := tx.SetMetadataKey(ctx, id, "vote_tallies", map[string]int{
			store.InFavour:   v.Counts.Yes,
			store.Against:    v.Counts.No,
			store.Abstaining: v.Counts.Abstain,
			"non_voting":     v.Counts.NonVoting,
			"total":          v.Counts.Total,
		})
		if err != nil {
			return nil, err
		}
	}
	return []string{symbol}, nil
}
