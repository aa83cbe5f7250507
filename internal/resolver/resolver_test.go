package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func textServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveIPv4FromJSONProvider(t *testing.T) {
	srv := jsonServer(t, `{"ip":"203.0.113.5"}`)

	r := New(&Config{
		IPv4Providers: []Provider{{Name: "test", URL: srv.URL, JSON: true}},
		IPv6Providers: []Provider{{Name: "none", URL: "http://127.0.0.1:0"}},
	}, zaptest.NewLogger(t))

	pair, geo, err := r.Resolve(context.Background(), true, false)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", pair.IPv4)
	assert.Empty(t, pair.IPv6)
	assert.Nil(t, geo)
}

func TestResolveIPv4AlternateJSONKeys(t *testing.T) {
	for _, body := range []string{
		`{"IPv4":"203.0.113.5"}`,
		`{"query":"203.0.113.5"}`,
	} {
		srv := jsonServer(t, body)
		r := New(&Config{
			IPv4Providers: []Provider{{Name: "test", URL: srv.URL, JSON: true}},
		}, zaptest.NewLogger(t))

		pair, _, err := r.Resolve(context.Background(), true, false)
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.5", pair.IPv4)
	}
}

func TestResolveIPv4FallsThroughFailingProviders(t *testing.T) {
	bad := failingServer(t)
	garbage := textServer(t, "not an address")
	good := textServer(t, "198.51.100.7\n")

	r := New(&Config{
		IPv4Providers: []Provider{
			{Name: "bad", URL: bad.URL},
			{Name: "garbage", URL: garbage.URL},
			{Name: "good", URL: good.URL},
		},
	}, zaptest.NewLogger(t))

	pair, _, err := r.Resolve(context.Background(), true, false)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", pair.IPv4)
}

func TestResolveIPv6RejectsIneligibleCandidates(t *testing.T) {
	linkLocal := textServer(t, "fe80::1")
	routable := textServer(t, "2001:4860:4860::8888")

	r := New(&Config{
		IPv6Providers: []Provider{
			{Name: "linklocal", URL: linkLocal.URL},
			{Name: "routable", URL: routable.URL},
		},
	}, zaptest.NewLogger(t))

	pair, _, err := r.Resolve(context.Background(), false, true)
	require.NoError(t, err)
	assert.Equal(t, "2001:4860:4860::8888", pair.IPv6)
}

func TestResolveAllProvidersFailIsFatal(t *testing.T) {
	bad := failingServer(t)

	r := New(&Config{
		IPv4Providers: []Provider{{Name: "bad", URL: bad.URL}},
		IPv6Providers: []Provider{{Name: "bad6", URL: bad.URL}},
	}, zaptest.NewLogger(t))

	pair, _, err := r.Resolve(context.Background(), true, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAddress)
	assert.True(t, pair.IsEmpty())
}

func TestResolveOneProtocolFailureIsNotFatal(t *testing.T) {
	good := textServer(t, "198.51.100.7")
	bad := failingServer(t)

	r := New(&Config{
		IPv4Providers: []Provider{{Name: "good", URL: good.URL}},
		IPv6Providers: []Provider{{Name: "bad", URL: bad.URL}},
	}, zaptest.NewLogger(t))

	pair, _, err := r.Resolve(context.Background(), true, true)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", pair.IPv4)
	assert.Empty(t, pair.IPv6)
}

func TestResolveGeoProvider(t *testing.T) {
	geoSrv := jsonServer(t, `{
		"ip": "203.0.113.5",
		"city": "Berlin",
		"region": "Berlin",
		"country": "DE",
		"org": "AS64496 Example ISP",
		"timezone": "Europe/Berlin"
	}`)
	plain := textServer(t, "198.51.100.7")

	r := New(&Config{
		IPv4Providers: []Provider{{Name: "plain", URL: plain.URL}},
		GeoURL:        geoSrv.URL,
		GeoToken:      "test-token",
	}, zaptest.NewLogger(t))

	pair, geo, err := r.Resolve(context.Background(), true, false)
	require.NoError(t, err)
	// Geo provider replaces the plain lookup
	assert.Equal(t, "203.0.113.5", pair.IPv4)
	require.NotNil(t, geo)
	assert.Equal(t, "Berlin", geo.City)
	assert.Equal(t, "Europe/Berlin", geo.Timezone)
}

func TestResolveGeoFailureFallsBack(t *testing.T) {
	geoSrv := failingServer(t)
	plain := textServer(t, "198.51.100.7")

	r := New(&Config{
		IPv4Providers: []Provider{{Name: "plain", URL: plain.URL}},
		GeoURL:        geoSrv.URL,
		GeoToken:      "test-token",
	}, zaptest.NewLogger(t))

	pair, geo, err := r.Resolve(context.Background(), true, false)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", pair.IPv4)
	assert.Nil(t, geo)
}

func TestGeoRequestCarriesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ip":"203.0.113.5"}`))
	}))
	t.Cleanup(srv.Close)

	r := New(&Config{
		IPv4Providers: []Provider{{Name: "unused", URL: "http://127.0.0.1:0"}},
		GeoURL:        srv.URL,
		GeoToken:      "secret",
	}, zaptest.NewLogger(t))

	_, _, err := r.Resolve(context.Background(), true, false)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}
