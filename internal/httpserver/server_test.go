package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkhub/internal/identity"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/metrics"
	"github.com/MrSnakeDoc/linkhub/internal/profiles"
	"github.com/MrSnakeDoc/linkhub/internal/store"
	"github.com/MrSnakeDoc/linkhub/internal/store/memory"
	"github.com/MrSnakeDoc/linkhub/internal/utils"
)

var testSecret = []byte("http-test-secret")

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type harness struct {
	t       *testing.T
	handler http.Handler
	backend *failingBackend
	issuer  *identity.Issuer
}

// failingBackend is a memory store that fails every call while fail is set.
// When stall is set, the next read holds its rows until stall is closed.
type failingBackend struct {
	*memory.Store
	fail bool

	mu    sync.Mutex
	stall chan struct{}
	read  chan struct{}
}

var errBackendDown = errors.New("backend down")

func (b *failingBackend) SelectByUsername(ctx context.Context, username string) ([]store.Row, error) {
	if b.fail {
		return nil, errBackendDown
	}
	rows, err := b.Store.SelectByUsername(ctx, username)

	b.mu.Lock()
	stall, read := b.stall, b.read
	b.stall, b.read = nil, nil
	b.mu.Unlock()
	if stall != nil {
		close(read)
		<-stall
	}
	return rows, err
}

// stallNextRead arms the stall and returns a channel closed once it has the rows.
func (b *failingBackend) stallNextRead(release chan struct{}) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stall, b.read = release, make(chan struct{})
	return b.read
}

func (b *failingBackend) UpdateByUsername(ctx context.Context, username, userID string, patch store.Patch) error {
	if b.fail {
		return errBackendDown
	}
	return b.Store.UpdateByUsername(ctx, username, userID, patch)
}

func (b *failingBackend) Ping(context.Context) error {
	if b.fail {
		return errBackendDown
	}
	return nil
}

func newHarness(t *testing.T, tweak ...func(*deps.Deps)) *harness {
	t.Helper()

	verifier, err := identity.NewHMACVerifier(testSecret, identity.WithIssuer("linkhub-test"))
	require.NoError(t, err)

	backend := &failingBackend{Store: memory.New()}
	m := metrics.New()
	log := logger.NewNop()

	n := 0
	d := deps.Deps{
		Logger:       log,
		StartTime:    time.Now(),
		Version:      "test",
		Profiles:     profiles.New(backend, log, m),
		Verifier:     verifier,
		Metrics:      m,
		Locks:        utils.NewKeyedMutex(),
		NewLinkID:    func() string { n++; return fmt.Sprintf("link-%d", n) },
		CreateBurst:  100,
		CreatePerMin: 100,
	}
	for _, fn := range tweak {
		fn(&d)
	}

	return &harness{
		t:       t,
		handler: NewRouter(time.Second, log, d),
		backend: backend,
		issuer:  identity.NewIssuer(testSecret, "linkhub-test"),
	}
}

func (h *harness) token(sub string) string {
	h.t.Helper()
	tok, err := h.issuer.Issue(sub, time.Hour)
	require.NoError(h.t, err)
	return tok
}

// do sends a request as sub ("" for anonymous) and decodes the envelope.
func (h *harness) do(method, path, sub string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(sub))
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (h *harness) createProfile(username, owner string, links ...domain.LinkDraft) {
	h.t.Helper()
	rec, _ := h.do(http.MethodPost, "/api/profiles", owner, map[string]interface{}{
		"username": username,
		"theme":    "dark",
		"links":    links,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
}

type viewBody struct {
	Username string              `json:"username"`
	Theme    string              `json:"theme"`
	Links    []domain.LinkRecord `json:"links"`
	Total    int                 `json:"total"`
	CanEdit  bool                `json:"can_edit"`
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func ids(links []domain.LinkRecord) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ID)
	}
	return out
}

func TestPublicProfileView(t *testing.T) {
	h := newHarness(t)
	h.createProfile("Alice", "user_a",
		domain.LinkDraft{Title: "GitHub", URL: "https://github.com/alice", Category: domain.CategoryWork},
		domain.LinkDraft{Title: "Blog", URL: "https://alice.dev"},
	)

	rec, env := h.do(http.MethodGet, "/profile/alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var v viewBody
	decodeData(t, env, &v)
	assert.Equal(t, "alice", v.Username)
	assert.Equal(t, "dark", v.Theme)
	assert.Equal(t, []string{"link-1", "link-2"}, ids(v.Links))
	assert.False(t, v.CanEdit)

	_, env = h.do(http.MethodGet, "/profile/ALICE", "user_a", nil)
	decodeData(t, env, &v)
	assert.True(t, v.CanEdit, "owner sees can_edit")

	_, env = h.do(http.MethodGet, "/profile/alice", "user_b", nil)
	decodeData(t, env, &v)
	assert.False(t, v.CanEdit, "signed-in non-owner is read-only")
}

func TestProfileSearch(t *testing.T) {
	h := newHarness(t)
	h.createProfile("bob", "user_b",
		domain.LinkDraft{Title: "GitHub", URL: "https://github.com/bob", Category: domain.CategoryWork},
		domain.LinkDraft{Title: "Photos", URL: "https://photos.example", Category: domain.CategoryMedia},
	)

	var v viewBody
	_, env := h.do(http.MethodGet, "/profile/bob?q=git", "", nil)
	decodeData(t, env, &v)
	assert.Len(t, v.Links, 1)
	assert.Equal(t, 2, v.Total)

	_, env = h.do(http.MethodGet, "/profile/bob?field=category&q=MEDIA", "", nil)
	decodeData(t, env, &v)
	require.Len(t, v.Links, 1)
	assert.Equal(t, "Photos", v.Links[0].Title)

	rec, env := h.do(http.MethodGet, "/profile/bob?field=owner&q=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestProfileNotFound(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/profile/nobody", "/profile/no!"} {
		rec, env := h.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "PROFILE_NOT_FOUND", env.Error.Code, path)
	}
}

func TestCreateProfileErrors(t *testing.T) {
	h := newHarness(t)
	h.createProfile("taken", "user_a")

	tests := []struct {
		name   string
		sub    string
		body   interface{}
		status int
		code   string
	}{
		{name: "anonymous", body: map[string]string{"username": "fresh"}, status: http.StatusUnauthorized, code: "UNAUTHENTICATED"},
		{name: "taken", sub: "user_b", body: map[string]string{"username": "TAKEN"}, status: http.StatusConflict, code: "USERNAME_TAKEN"},
		{name: "bad username", sub: "user_b", body: map[string]string{"username": "a"}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "bad theme", sub: "user_b", body: map[string]string{"username": "fresh", "theme": "neon"}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "bad json", sub: "user_b", body: `{"username":`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "empty body", sub: "user_b", body: ``, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "unknown field", sub: "user_b", body: `{"username":"fresh","owner":"me"}`, status: http.StatusBadRequest, code: "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := h.do(http.MethodPost, "/api/profiles", tt.sub, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestCreateProfileInvalidLinkReportsIndex(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(http.MethodPost, "/api/profiles", "user_a", map[string]interface{}{
		"username": "carol",
		"links": []domain.LinkDraft{
			{Title: "ok", URL: "https://ok.example"},
			{Title: "bad", URL: "not a url"},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var details struct {
		Field string `json:"field"`
		Code  string `json:"code"`
		Index *int   `json:"index"`
	}
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	assert.Equal(t, "url", details.Field)
	assert.Equal(t, string(domain.InvalidURL), details.Code)
	require.NotNil(t, details.Index)
	assert.Equal(t, 1, *details.Index)
}

func TestListProfiles(t *testing.T) {
	h := newHarness(t)
	h.createProfile("first", "user_a")
	h.createProfile("second", "user_a")
	h.createProfile("other", "user_b")

	rec, env := h.do(http.MethodGet, "/api/profiles", "user_a", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []struct {
		Username string `json:"username"`
	}
	decodeData(t, env, &list)
	require.Len(t, list, 2)

	rec, _ = h.do(http.MethodGet, "/api/profiles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerLinkLifecycle(t *testing.T) {
	h := newHarness(t)
	h.createProfile("dana", "user_d",
		domain.LinkDraft{Title: "A", URL: "https://a.example"},
		domain.LinkDraft{Title: "B", URL: "https://b.example"},
	)

	// add
	rec, env := h.do(http.MethodPost, "/api/profiles/dana/links", "user_d",
		domain.LinkDraft{Title: "C", URL: "https://c.example", Category: domain.CategorySocial})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added domain.LinkRecord
	decodeData(t, env, &added)
	assert.Equal(t, "link-3", added.ID)

	// edit keeps id and position
	rec, env = h.do(http.MethodPatch, "/api/profiles/dana/links/link-1", "user_d", `{"title":"A2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited domain.LinkRecord
	decodeData(t, env, &edited)
	assert.Equal(t, domain.LinkRecord{ID: "link-1", Title: "A2", URL: "https://a.example"}, edited)

	// move C to the front
	rec, env = h.do(http.MethodPost, "/api/profiles/dana/links/link-3/move", "user_d", `{"index":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v viewBody
	decodeData(t, env, &v)
	assert.Equal(t, []string{"link-3", "link-1", "link-2"}, ids(v.Links))

	// delete B, then delete it again
	rec, _ = h.do(http.MethodDelete, "/api/profiles/dana/links/link-2", "user_d", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, env = h.do(http.MethodDelete, "/api/profiles/dana/links/link-2", "user_d", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "LINK_NOT_FOUND", env.Error.Code)

	// theme
	rec, _ = h.do(http.MethodPut, "/api/profiles/dana/theme", "user_d", `{"theme":"green"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// everything persisted
	_, env = h.do(http.MethodGet, "/profile/dana", "", nil)
	decodeData(t, env, &v)
	assert.Equal(t, "green", v.Theme)
	assert.Equal(t, []string{"link-3", "link-1"}, ids(v.Links))
	assert.Equal(t, "A2", v.Links[1].Title)
}

// Two owner adds issued while a visitor's read is still in flight must both
// survive: each add builds on the row of record, not on the older shared read.
func TestSequentialAddsDuringInFlightView(t *testing.T) {
	h := newHarness(t)
	h.createProfile("erin", "user_e")

	release := make(chan struct{})
	read := h.backend.stallNextRead(release)
	viewDone := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile/erin", nil))
		viewDone <- rec.Code
	}()
	<-read

	rec, _ := h.do(http.MethodPost, "/api/profiles/erin/links", "user_e",
		domain.LinkDraft{Title: "X", URL: "https://x.example"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, _ = h.do(http.MethodPost, "/api/profiles/erin/links", "user_e",
		domain.LinkDraft{Title: "Y", URL: "https://y.example"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	close(release)
	assert.Equal(t, http.StatusOK, <-viewDone)

	_, env := h.do(http.MethodGet, "/profile/erin", "", nil)
	var v viewBody
	decodeData(t, env, &v)
	assert.Equal(t, []string{"link-1", "link-2"}, ids(v.Links))
	assert.Equal(t, "X", v.Links[0].Title)
	assert.Equal(t, "Y", v.Links[1].Title)
}

func TestMutationErrors(t *testing.T) {
	h := newHarness(t)
	h.createProfile("erin", "user_e", domain.LinkDraft{Title: "A", URL: "https://a.example"})

	tests := []struct {
		name   string
		method string
		path   string
		sub    string
		body   interface{}
		status int
		code   string
	}{
		{"anonymous add", http.MethodPost, "/api/profiles/erin/links", "", `{"title":"x","url":"https://x.example"}`, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"non-owner add", http.MethodPost, "/api/profiles/erin/links", "user_x", `{"title":"x","url":"https://x.example"}`, http.StatusForbidden, "FORBIDDEN"},
		{"invalid url", http.MethodPost, "/api/profiles/erin/links", "user_e", `{"title":"x","url":"not-a-url"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty title", http.MethodPost, "/api/profiles/erin/links", "user_e", `{"title":" ","url":"https://x.example"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown profile", http.MethodPost, "/api/profiles/ghost/links", "user_e", `{"title":"x","url":"https://x.example"}`, http.StatusNotFound, "PROFILE_NOT_FOUND"},
		{"unknown link", http.MethodPatch, "/api/profiles/erin/links/nope", "user_e", `{"title":"x"}`, http.StatusNotFound, "LINK_NOT_FOUND"},
		{"move out of range", http.MethodPost, "/api/profiles/erin/links/link-1/move", "user_e", `{"index":5}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"move missing index", http.MethodPost, "/api/profiles/erin/links/link-1/move", "user_e", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad theme", http.MethodPut, "/api/profiles/erin/theme", "user_e", `{"theme":"neon"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"non-owner theme", http.MethodPut, "/api/profiles/erin/theme", "user_x", `{"theme":"dark"}`, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := h.do(tt.method, tt.path, tt.sub, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	// nothing above changed the profile
	var v viewBody
	_, env := h.do(http.MethodGet, "/profile/erin", "", nil)
	decodeData(t, env, &v)
	assert.Equal(t, []string{"link-1"}, ids(v.Links))
	assert.Equal(t, "dark", v.Theme)
}

func TestInvalidTokenIsRejected(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/profile/anyone", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
}

func TestTransientFailuresAre503(t *testing.T) {
	h := newHarness(t)
	h.createProfile("frank", "user_f", domain.LinkDraft{Title: "A", URL: "https://a.example"})
	h.backend.fail = true

	rec, env := h.do(http.MethodGet, "/profile/frank", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec, _ = h.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.backend.fail = false
	rec, _ = h.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateIsRateLimited(t *testing.T) {
	h := newHarness(t, func(d *deps.Deps) {
		d.CreateBurst = 1
		d.CreatePerMin = 1
	})

	h.createProfile("first", "user_a")
	rec, env := h.do(http.MethodPost, "/api/profiles", "user_a", map[string]string{"username": "second"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// buckets are per caller
	rec, _ = h.do(http.MethodPost, "/api/profiles", "user_b", map[string]string{"username": "third"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestOpsEndpoints(t *testing.T) {
	trigger := make(chan struct{}, 1)
	h := newHarness(t, func(d *deps.Deps) { d.SeedReloadTrigger = trigger })

	rec, env := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec, _ = h.do(http.MethodPost, "/reload", "", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, _ = h.do(http.MethodPost, "/reload", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "trigger already pending")
	<-trigger
}

func TestOpsEndpointsRespectCIDRs(t *testing.T) {
	h := newHarness(t, func(d *deps.Deps) { d.AllowedCIDRS = []string{"10.0.0.0/8"} })

	// httptest requests come from 192.0.2.1
	for _, path := range []string{"/readyz", "/metrics"} {
		rec, _ := h.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	rec, _ := h.do(http.MethodPost, "/reload", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "healthz stays open")
}

func TestReloadWithoutSeedFile(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(http.MethodPost, "/reload", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
