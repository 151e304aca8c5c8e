package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/mbpd/internal/auth"
	"github.com/pccr10001/mbpd/internal/config"
	"github.com/pccr10001/mbpd/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

const isoFixture = `<iso_3166_entries>
  <iso_3166_entry alpha_2_code="US" name="United States"/>
  <iso_3166_entry alpha_2_code="TW" name="Taiwan, Province of China" common_name="Taiwan"/>
</iso_3166_entries>`

const spFixture = `<serviceproviders format="2.0">
  <country code="us">
    <provider>
      <name>AT&amp;T</name>
      <gsm><network-id mcc="310" mnc="410"/><apn value="broadband"><name>LTE</name></apn></gsm>
    </provider>
    <provider>
      <name>Verizon</name>
      <cdma><sid value="4"/><username>vz</username></cdma>
    </provider>
  </country>
  <country code="tw">
    <provider>
      <name>Chunghwa Telecom</name>
      <gsm><network-id mcc="466" mnc="92"/><apn value="internet"/></gsm>
    </provider>
  </country>
</serviceproviders>`

func openTestDatabase(t *testing.T, sp string) *providers.Database {
	t.Helper()
	dir := t.TempDir()
	iso := filepath.Join(dir, "iso_3166.xml")
	spPath := filepath.Join(dir, "serviceproviders.xml")
	require.NoError(t, os.WriteFile(iso, []byte(isoFixture), 0o644))
	require.NoError(t, os.WriteFile(spPath, []byte(sp), 0o644))

	db, err := providers.Open(providers.Options{CountryCodes: iso, ServiceProviders: spPath})
	require.NoError(t, err)
	return db
}

func newTestRouter(t *testing.T, store *Store, opts RouterOptions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRouter(r, store, opts)
	return r
}

func doRequest(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPing(t *testing.T) {
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{})

	w := doRequest(r, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", decode(t, w)["message"])
}

func TestListCountries(t *testing.T) {
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{})

	w := doRequest(r, http.MethodGet, "/api/v1/countries", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []countrySummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, []countrySummary{
		{Code: "TW", Name: "Taiwan", Providers: 1},
		{Code: "US", Name: "United States", Providers: 2},
	}, list)
}

func TestGetCountry(t *testing.T) {
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{})

	w := doRequest(r, http.MethodGet, "/api/v1/countries/us", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var country providers.CountryInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &country))
	assert.Equal(t, "US", country.Code)
	require.Len(t, country.Providers, 2)
	assert.Equal(t, "AT&T", country.Providers[0].Name)
	require.Len(t, country.Providers[1].Methods, 1)
	assert.Equal(t, "vz", country.Providers[1].Methods[0].Username)

	w = doRequest(r, http.MethodGet, "/api/v1/countries/zz", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLookupMCCMNC(t *testing.T) {
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{})

	w := doRequest(r, http.MethodGet, "/api/v1/lookup/mccmnc/310410", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "310", body["mcc"])
	assert.Equal(t, "410", body["mnc"])
	assert.Equal(t, "AT&T", body["provider"].(map[string]interface{})["name"])

	w = doRequest(r, http.MethodGet, "/api/v1/lookup/mccmnc/46692", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chunghwa Telecom", decode(t, w)["provider"].(map[string]interface{})["name"])

	w = doRequest(r, http.MethodGet, "/api/v1/lookup/mccmnc/999999", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, bad := range []string{"3104", "3104100", "31041x"} {
		w = doRequest(r, http.MethodGet, "/api/v1/lookup/mccmnc/"+bad, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestLookupSID(t *testing.T) {
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{})

	w := doRequest(r, http.MethodGet, "/api/v1/lookup/sid/4", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Verizon", decode(t, w)["provider"].(map[string]interface{})["name"])

	w = doRequest(r, http.MethodGet, "/api/v1/lookup/sid/5", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/lookup/sid/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperatorName(t *testing.T) {
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{})

	cases := map[string]string{
		"/api/v1/operator?name=310410":            "AT&T",
		"/api/v1/operator?code=46692":             "Chunghwa Telecom",
		"/api/v1/operator?name=Vodafone&code=310": "Vodafone",
		"/api/v1/operator?name=999999":            "",
	}
	for path, want := range cases {
		w := doRequest(r, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, want, decode(t, w)["name"], path)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/operator", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRoutesNeedSecret(t *testing.T) {
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{})

	w := doRequest(r, http.MethodGet, "/api/v1/modems/ports", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	var cfg config.Config
	cfg.Auth.Secret = testSecret
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{Config: cfg})

	w := doRequest(r, http.MethodPost, "/api/v1/modems/detect", `{"port":"/dev/null"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/modems/detect", `{"port":"/dev/null"}`, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := auth.GenerateToken("other-secret", "ops", time.Hour)
	require.NoError(t, err)
	w = doRequest(r, http.MethodPost, "/api/v1/modems/detect", `{"port":"/dev/null"}`, other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	w = doRequest(r, http.MethodPost, "/api/v1/modems/detect", `{}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "port is required")
}

func TestDetectExcludedPort(t *testing.T) {
	var cfg config.Config
	cfg.Auth.Secret = testSecret
	cfg.Serial.ExcludePorts = []string{"/dev/ttyS0"}
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{Config: cfg})

	token, err := auth.GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	w := doRequest(r, http.MethodPost, "/api/v1/modems/detect", `{"port":"/dev/ttyS0"}`, token)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode(t, w)["error"], "excluded")
}

func TestReload(t *testing.T) {
	var cfg config.Config
	cfg.Auth.Secret = testSecret
	store := NewStore(openTestDatabase(t, spFixture))

	reloaded := openTestDatabase(t, `<serviceproviders format="2.0"><country code="us">
		<provider><name>T-Mobile</name><gsm><network-id mcc="310" mnc="260"/></gsm></provider>
	</country></serviceproviders>`)
	reload := func() (*providers.Database, error) { return reloaded, nil }
	r := newTestRouter(t, store, RouterOptions{Config: cfg, Reload: reload})

	token, err := auth.GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)

	w := doRequest(r, http.MethodPost, "/api/v1/reload", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["countries"])
	assert.EqualValues(t, 1, body["providers"])
	assert.Same(t, reloaded, store.Get())

	w = doRequest(r, http.MethodGet, "/api/v1/lookup/mccmnc/310260", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, http.MethodGet, "/api/v1/lookup/mccmnc/310410", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReloadFailureKeepsDatabase(t *testing.T) {
	var cfg config.Config
	cfg.Auth.Secret = testSecret
	current := openTestDatabase(t, spFixture)
	store := NewStore(current)
	reload := func() (*providers.Database, error) { return nil, errors.New("no such file") }
	r := newTestRouter(t, store, RouterOptions{Config: cfg, Reload: reload})

	token, err := auth.GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	w := doRequest(r, http.MethodPost, "/api/v1/reload", "", token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Same(t, current, store.Get())
}

func TestReloadMissingProvidersKeepsDatabase(t *testing.T) {
	var cfg config.Config
	cfg.Auth.Secret = testSecret
	current := openTestDatabase(t, spFixture)
	store := NewStore(current)

	dir := t.TempDir()
	iso := filepath.Join(dir, "iso_3166.xml")
	require.NoError(t, os.WriteFile(iso, []byte(isoFixture), 0o644))
	reload := func() (*providers.Database, error) {
		return providers.Open(providers.Options{
			CountryCodes:     iso,
			ServiceProviders: filepath.Join(dir, "missing.xml"),
		})
	}
	r := newTestRouter(t, store, RouterOptions{Config: cfg, Reload: reload})

	token, err := auth.GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	w := doRequest(r, http.MethodPost, "/api/v1/reload", "", token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Same(t, current, store.Get())

	w = doRequest(r, http.MethodGet, "/api/v1/lookup/mccmnc/310410", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReloadEmptyProvidersKeepsDatabase(t *testing.T) {
	var cfg config.Config
	cfg.Auth.Secret = testSecret
	current := openTestDatabase(t, spFixture)
	store := NewStore(current)

	empty := openTestDatabase(t, `<serviceproviders format="2.0"></serviceproviders>`)
	reload := func() (*providers.Database, error) { return empty, nil }
	r := newTestRouter(t, store, RouterOptions{Config: cfg, Reload: reload})

	token, err := auth.GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	w := doRequest(r, http.MethodPost, "/api/v1/reload", "", token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Same(t, current, store.Get())
}

func TestGetCountryWithoutProviders(t *testing.T) {
	r := newTestRouter(t, NewStore(openTestDatabase(t, `<serviceproviders format="2.0"><country code="us">
		<provider><name>T-Mobile</name><gsm><network-id mcc="310" mnc="260"/></gsm></provider>
	</country></serviceproviders>`)), RouterOptions{})

	w := doRequest(r, http.MethodGet, "/api/v1/countries/tw", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":"TW","name":"Taiwan","providers":[]}`, w.Body.String())
}

func TestListDetectionsWithoutWatcher(t *testing.T) {
	var cfg config.Config
	cfg.Auth.Secret = testSecret
	r := newTestRouter(t, NewStore(openTestDatabase(t, spFixture)), RouterOptions{Config: cfg})

	token, err := auth.GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	w := doRequest(r, http.MethodGet, "/api/v1/modems", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
