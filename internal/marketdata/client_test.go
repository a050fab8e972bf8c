package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const sampleCSV = `Date,Open,High,Low,Close,Volume
2024-01-02,132000,133500,131800,133000,1000000
2024-01-03,133000,134000,132500,132250,900000
2024-01-04,132250,132300,130000,131000,1100000
`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(nil)
	c.SetBaseURL(server.URL)
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	c.backoff = time.Millisecond
	return c
}

func TestDailyCloses(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(sampleCSV))
	})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	quotes, err := c.DailyCloses(context.Background(), "^BVSP", from, to)
	require.NoError(t, err)

	require.Len(t, quotes, 3)
	assert.Equal(t, 133000.0, quotes[0].Close)
	assert.Equal(t, 131000.0, quotes[2].Close)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), quotes[0].Date)

	// Symbol is lowercased and escaped, dates formatted as YYYYMMDD.
	assert.Contains(t, gotQuery, "s=%5Ebvsp")
	assert.Contains(t, gotQuery, "d1=20240101")
	assert.Contains(t, gotQuery, "d2=20240131")
	assert.Contains(t, gotQuery, "i=d")
}

func TestDailyClosesSkipsBadRows(t *testing.T) {
	csv := "Date,Open,High,Low,Close,Volume\n" +
		"2024-01-02,1,1,1,100,10\n" +
		"not-a-date,1,1,1,100,10\n" +
		"2024-01-03,1,1,1,N/D,10\n" +
		"2024-01-04,1,1,1,101,10\n"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	})

	quotes, err := c.DailyCloses(context.Background(), "spy", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, []float64{100, 101}, Closes(quotes))
}

func TestDailyClosesNoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date,Open,High,Low,Close,Volume\n"))
	})

	_, err := c.DailyCloses(context.Background(), "none", time.Now().AddDate(0, -1, 0), time.Now())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestDailyClosesRetriesServerErrors(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(sampleCSV))
	})

	quotes, err := c.DailyCloses(context.Background(), "spy", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Len(t, quotes, 3)
	assert.Equal(t, 3, calls)
}

func TestDailyClosesExhaustsRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c.retries = 2

	_, err := c.DailyCloses(context.Background(), "spy", time.Now().AddDate(0, -1, 0), time.Now())
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestDailyClosesInputValidation(t *testing.T) {
	c := NewClient(nil)

	_, err := c.DailyCloses(context.Background(), "", time.Now().AddDate(0, -1, 0), time.Now())
	assert.ErrorIs(t, err, ErrRequestFailed)

	now := time.Now()
	_, err = c.DailyCloses(context.Background(), "spy", now, now)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestParseCSVMissingColumns(t *testing.T) {
	_, err := parseCSV(strings.NewReader("Foo,Bar\n1,2\n"))
	assert.ErrorIs(t, err, ErrNoData)
}
