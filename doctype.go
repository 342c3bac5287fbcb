package unga

import (
	"path/filepath"
	"slices"
	"strings"
)

// Document categories used for directory names under documents/ and parsed/.
const (
	TypeResolutions      = "resolutions"
	TypeDrafts           = "drafts"
	TypeCommitteeReports = "committee-reports"
	TypeSummaryRecords   = "committee-summary-records"
	TypeAgenda           = "agenda"
	TypeMeetings         = "meetings"
	TypeVoting           = "voting"
	TypeOther            = "other"
)

// DetectType guesses the category from a metadata file name such as
// session_78_committee_3_drafts.json.
func DetectType(filename string) string {
	name := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.Contains(name, "resolutions"):
		return TypeResolutions
	case strings.Contains(name, "draft"):
		return TypeDrafts
	case strings.Contains(name, "committee-report"), strings.Contains(name, "committee_reports"):
		return TypeCommitteeReports
	case strings.Contains(name, "summary_records"), strings.Contains(name, "summary-records"):
		return TypeSummaryRecords
	case strings.Contains(name, "agenda"):
		return TypeAgenda
	case strings.Contains(name, "meeting"):
		return TypeMeetings
	case strings.Contains(name, "voting"):
		return TypeVoting
	}
	return TypeOther
}

// DetectTypeFromPath looks for a category name among the directories of path.
func DetectTypeFromPath(path string) string {
	parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
	has := func(names ...string) bool {
		for _, n := range names {
			if slices.Contains(parts, n) {
				return true
			}
		}
		return false
	}

	switch {
	case has(TypeResolutions):
		return TypeResolutions
	case has(TypeDrafts):
		return TypeDrafts
	case has(TypeCommitteeReports, "committee_reports"):
		return TypeCommitteeReports
	case has(TypeAgenda):
		return TypeAgenda
	case has(TypeMeetings):
		return TypeMeetings
	case has(TypeVoting):
		return TypeVoting
	case has(TypeSummaryRecords, "committee_summary_records"):
		return TypeSummaryRecords
	}
	return TypeOther
}

// Category detects the category of a metadata file from its name and,
// failing that, from the directories it sits in.
func Category(path string) string {
	if t := DetectType(path); t != TypeOther {
		return t
	}
	return DetectTypeFromPath(filepath.Dir(path))
}

// DataRoot returns the test_data, dev_data or data directory that path lives
// under, or fallback when there is none.
func DataRoot(path, fallback string) string {
	parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
	for _, root := range []string{"test_data", "dev_data", "data"} {
		if i := slices.Index(parts, root); i >= 0 {
			p := filepath.Join(parts[:i+1]...)
			if filepath.IsAbs(path) {
				p = string(filepath.Separator) + p
			}
			return p
		}
	}
	return fallback
}
