package library

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlohamalainen/un-ga-documents-go/marc"
)

func page(total, from, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!-- Search-Engine-Total-Number-Of-Results: %d -->\n", total)
	b.WriteString(`<collection xmlns="http://www.loc.gov/MARC21/slim">`)
	for i := from; i < from+n; i++ {
		fmt.Fprintf(&b, `<record><controlfield tag="001">%d</controlfield></record>`, i)
	}
	b.WriteString("</collection>")
	return b.String()
}

// searchServer serves total records in pages of rg, honouring jrec.
func searchServer(t *testing.T, total, reported int, requests *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		assert.Equal(t, "xm", r.URL.Query().Get("of"))

		rg, _ := strconv.Atoi(r.URL.Query().Get("rg"))
		jrec := 1
		if v := r.URL.Query().Get("jrec"); v != "" {
			jrec, _ = strconv.Atoi(v)
		}
		n := min(rg, total-jrec+1)
		if n < 0 {
			n = 0
		}
		fmt.Fprint(w, page(reported, jrec, n))
	}))
}

func testClient(url string, rg int) *Client {
	c := NewClient(nil)
	c.BaseURL = url
	c.PageSize = rg
	c.Delay = 0
	c.MaxRetries = 1
	return c
}

func TestFetchAllPaginates(t *testing.T) {
	var requests int32
	srv := searchServer(t, 5, 5, &requests)
	defer srv.Close()

	records, err := testClient(srv.URL, 2).FetchAll(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.EqualValues(t, 3, requests)
}

func TestFetchAllSinglePage(t *testing.T) {
	var requests int32
	srv := searchServer(t, 1, 1, &requests)
	defer srv.Close()

	records, err := testClient(srv.URL, 2).FetchAll(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.EqualValues(t, 1, requests)
}

func TestFetchAllTotalEqualsPageSize(t *testing.T) {
	var requests int32
	// engine reports 2 but there are 3 records
	srv := searchServer(t, 3, 2, &requests)
	defer srv.Close()

	records, err := testClient(srv.URL, 2).FetchAll(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.EqualValues(t, 2, requests)
}

func TestFetchAllFirstPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).FetchAll(context.Background(), searchParams())
	assert.Error(t, err)
}

func TestExtractRecordsRegexFallback(t *testing.T) {
	body := `<collection><record><controlfield tag="001">1</controlfield></record><record>broken & unescaped</record>`

	records, usedRegex := ExtractRecords(body)
	assert.True(t, usedRegex)
	assert.Len(t, records, 2)
}

func TestReportedTotal(t *testing.T) {
	assert.Equal(t, 42, ReportedTotal("<!-- Search-Engine-Total-Number-Of-Results: 42 -->"))
	assert.Equal(t, 2, ReportedTotal("<collection><record></record><record></record></collection>"))
}

func TestFetchWritesDecodableCollection(t *testing.T) {
	var requests int32
	srv := searchServer(t, 3, 3, &requests)
	defer srv.Close()

	qs, err := QueriesFor(TypeResolutions, 78)
	require.NoError(t, err)

	dir := t.TempDir()
	path, n, err := testClient(srv.URL, 2).Fetch(context.Background(), qs[0], dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, filepath.Join(dir, "session_78_resolutions.xml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, ReportedTotal(string(data)))

	records, err := marc.DecodeFile(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "3", records[2].Control("001"))
}

func TestQueriesFor(t *testing.T) {
	qs, err := QueriesFor(TypeCommitteeDrafts, 78)
	require.NoError(t, err)
	require.Len(t, qs, 6)
	assert.Equal(t, `191__a:"A/C.3/78/L.*"`, qs[2].Params.Get("p"))
	assert.Equal(t, "session_78_committee_3_drafts.xml", qs[2].File)

	qs, err = QueriesFor(TypeVoting, 78)
	require.NoError(t, err)
	assert.Equal(t, "Voting Data", qs[0].Params.Get("c"))

	qs, err = QueriesFor(TypeCommitteeReports, 78)
	require.NoError(t, err)
	assert.Equal(t, "Reports", qs[0].Params.Get("fct__1"))

	qs, err = QueriesFor(TypeAgenda, 78)
	require.NoError(t, err)
	assert.Equal(t, `191__a:"A/78/251*" OR 191__a:"A/78/252*"`, qs[0].Params.Get("p"))

	_, err = QueriesFor("treaties", 78)
	assert.Error(t, err)
}

func TestExpandTypes(t *testing.T) {
	types, err := ExpandTypes([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, AllTypes, types)

	_, err = ExpandTypes([]string{"agenda", "bogus"})
	assert.Error(t, err)
}

func searchParams() url.Values {
	return url.Values{"p": {`191__a:"A/RES/78/*"`}}
}
