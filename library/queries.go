package library

import (
	"fmt"
	"net/url"
)

const (
	TypeResolutions             = "resolutions"
	TypeCommitteeDrafts         = "committee-drafts"
	TypeCommitteeReports        = "committee-reports"
	TypeCommitteeSummaryRecords = "committee-summary-records"
	TypePlenaryDrafts           = "plenary-drafts"
	TypeAgenda                  = "agenda"
	TypeMeetings                = "meetings"
	TypeVoting                  = "voting"
)

// AllTypes is the fetch order used for "all".
var AllTypes = []string{
	TypeResolutions,
	TypeCommitteeDrafts,
	TypeCommitteeReports,
	TypeCommitteeSummaryRecords,
	TypePlenaryDrafts,
	TypeAgenda,
	TypeMeetings,
	TypeVoting,
}

// Committees are the six Main Committees of the General Assembly.
var Committees = []int{1, 2, 3, 4, 5, 6}

// Query is one search against the Digital Library and the file its combined
// result is saved to.
type Query struct {
	Type   string
	Params url.Values
	File   string
}

func symbolQuery(pattern string) url.Values {
	return url.Values{"p": {`191__a:"` + pattern + `"`}}
}

// QueriesFor builds the searches for one document type and session.
// Committee scoped types produce one query per committee.
func QueriesFor(docType string, session int) ([]Query, error) {
	s := session
	switch docType {
	case TypeResolutions:
		return []Query{{
			Type:   docType,
			Params: symbolQuery(fmt.Sprintf("A/RES/%d/*", s)),
			File:   fmt.Sprintf("session_%d_resolutions.xml", s),
		}}, nil

	case TypeCommitteeDrafts:
		var qs []Query
		for _, c := range Committees {
			qs = append(qs, Query{
				Type:   docType,
				Params: symbolQuery(fmt.Sprintf("A/C.%d/%d/L.*", c, s)),
				File:   fmt.Sprintf("session_%d_committee_%d_drafts.xml", s, c),
			})
		}
		return qs, nil

	case TypeCommitteeReports:
		p := symbolQuery(fmt.Sprintf("A/%d/*", s))
		p.Set("fct__1", "Reports")
		p.Set("fct__2", "General Assembly")
		return []Query{{Type: docType, Params: p, File: fmt.Sprintf("session_%d_committee_reports.xml", s)}}, nil

	case TypeCommitteeSummaryRecords:
		var qs []Query
		for _, c := range Committees {
			qs = append(qs, Query{
				Type:   docType,
				Params: symbolQuery(fmt.Sprintf("A/C.%d/%d/SR.*", c, s)),
				File:   fmt.Sprintf("session_%d_committee_%d_summary_records.xml", s, c),
			})
		}
		return qs, nil

	case TypePlenaryDrafts:
		return []Query{{
			Type:   docType,
			Params: symbolQuery(fmt.Sprintf("A/%d/L.*", s)),
			File:   fmt.Sprintf("session_%d_plenary_drafts.xml", s),
		}}, nil

	case TypeAgenda:
		p := url.Values{"p": {fmt.Sprintf(`191__a:"A/%d/251*" OR 191__a:"A/%d/252*"`, s, s)}}
		return []Query{{Type: docType, Params: p, File: fmt.Sprintf("session_%d_agenda.xml", s)}}, nil

	case TypeMeetings:
		return []Query{{
			Type:   docType,
			Params: symbolQuery(fmt.Sprintf("A/%d/PV.*", s)),
			File:   fmt.Sprintf("session_%d_plenary_meetings.xml", s),
		}}, nil

	case TypeVoting:
		p := symbolQuery(fmt.Sprintf("A/RES/%d/*", s))
		p.Set("c", "Voting Data")
		return []Query{{Type: docType, Params: p, File: fmt.Sprintf("session_%d_voting.xml", s)}}, nil
	}

	return nil, fmt.Errorf("unknown document type %q", docType)
}

// ExpandTypes resolves "all" and rejects unknown names.
func ExpandTypes(types []string) ([]string, error) {
	var out []string
	for _, t := range types {
		if t == "all" {
			return AllTypes, nil
		}
		if _, err := QueriesFor(t, 1); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
