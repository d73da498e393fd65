package cfddns_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Travis-Britz/cfddns"
)

// countingServer answers every request with handler and counts the hits.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func body(s string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, s) }
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(code) }
}

func TestLookup(t *testing.T) {
	srv, _ := countingServer(t, body("192.168.2.1"))
	wr, err := cfddns.WebResolver(srv.URL)
	require.NoError(t, err)

	res, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.2.1"), res)
}

func TestFallbackToThirdProvider(t *testing.T) {
	down, downHits := countingServer(t, status(http.StatusServiceUnavailable))
	missing, missingHits := countingServer(t, status(http.StatusNotFound))
	good, goodHits := countingServer(t, body("203.0.113.5\n"))

	wr, err := cfddns.WebResolver(down.URL, missing.URL, good.URL)
	require.NoError(t, err)

	res, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.5"), res)
	assert.EqualValues(t, 1, downHits.Load())
	assert.EqualValues(t, 1, missingHits.Load())
	assert.EqualValues(t, 1, goodHits.Load())
}

func TestStopsAtFirstSuccess(t *testing.T) {
	first, firstHits := countingServer(t, body("198.51.100.7"))
	second, secondHits := countingServer(t, body("203.0.113.5"))

	wr, err := cfddns.WebResolver(first.URL, second.URL)
	require.NoError(t, err)

	res, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("198.51.100.7"), res)
	assert.EqualValues(t, 1, firstHits.Load())
	assert.Zero(t, secondHits.Load(), "providers after the first success must not be queried")
}

func TestMalformedBodyTriesNext(t *testing.T) {
	garbage, _ := countingServer(t, body("<html>not an ip</html>"))
	good, _ := countingServer(t, body("203.0.113.5"))

	wr, err := cfddns.WebResolver(garbage.URL, good.URL)
	require.NoError(t, err)

	res, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.5"), res)
}

func TestSanitizesControlCharacters(t *testing.T) {
	srv, _ := countingServer(t, body("\t203.0.113.5\r\n"))
	wr, err := cfddns.WebResolver(srv.URL)
	require.NoError(t, err)

	res, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", res.String())
}

func TestAllProvidersFail(t *testing.T) {
	a, aHits := countingServer(t, status(http.StatusInternalServerError))
	b, bHits := countingServer(t, body("a"))
	c, cHits := countingServer(t, body(""))

	wr, err := cfddns.WebResolver(a.URL, b.URL, c.URL)
	require.NoError(t, err)

	res, err := wr.Resolve(context.Background())
	require.ErrorIs(t, err, cfddns.ErrNoAddress)
	assert.False(t, res.IsValid())
	for _, hits := range []*atomic.Int32{aHits, bHits, cHits} {
		assert.EqualValues(t, 1, hits.Load(), "every provider should be asked exactly once")
	}
}

func TestNoProviders(t *testing.T) {
	wr, err := cfddns.WebResolver()
	require.NoError(t, err)
	_, err = wr.Resolve(context.Background())
	assert.ErrorIs(t, err, cfddns.ErrNoAddress)
}

func TestInvalidProviderURL(t *testing.T) {
	_, err := cfddns.WebResolver("ftp://example.com/ip")
	assert.Error(t, err)
}

func TestCancellationStopsResolution(t *testing.T) {
	slow, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	next, nextHits := countingServer(t, body("203.0.113.5"))

	wr, err := cfddns.WebResolver(slow.URL, next.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = wr.Resolve(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, nextHits.Load(), "a cancelled resolution must not fall through to the next provider")
}
