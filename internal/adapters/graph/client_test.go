package graph_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/kpisync/internal/adapters/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDrive is an in-memory drive behind a Graph-shaped HTTP API.
type fakeDrive struct {
	mu      sync.Mutex
	items   map[string]string // path -> id
	content map[string][]byte // id -> bytes
	calls   map[string]int
	mail    []map[string]any
	tokens  int
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		items:   map[string]string{},
		content: map[string][]byte{},
		calls:   map[string]int{},
	}
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := r.URL.Path
	f.calls[r.Method+" "+p]++

	switch {
	case p == "/token":
		f.tokens++
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"t","token_type":"Bearer","expires_in":3600}`)
		return
	case r.Header.Get("Authorization") != "Bearer t":
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	const root = "/v1.0/drives/d1/root:"
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(p, "/v1.0/users/"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mail = append(f.mail, body)
		w.WriteHeader(http.StatusAccepted)
	case r.Method == http.MethodPut && strings.HasPrefix(p, root) && strings.HasSuffix(p, ":/content"):
		path := strings.TrimSuffix(strings.TrimPrefix(p, root), ":/content")
		data, _ := io.ReadAll(r.Body)
		id, ok := f.items[path]
		if !ok {
			id = "id-" + strings.ReplaceAll(strings.Trim(path, "/"), "/", "-")
			f.items[path] = id
		}
		f.content[id] = data
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	case r.Method == http.MethodPost && (p == "/v1.0/drives/d1/root/children" || strings.HasSuffix(p, ":/children")):
		parent := ""
		if p != "/v1.0/drives/d1/root/children" {
			parent = strings.TrimSuffix(strings.TrimPrefix(p, root), ":/children")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		path := parent + "/" + body["name"].(string)
		if _, ok := f.items[path]; ok {
			w.WriteHeader(http.StatusConflict)
			return
		}
		id := "folder-" + body["name"].(string)
		f.items[path] = id
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	case r.Method == http.MethodGet && strings.HasPrefix(p, root):
		id, ok := f.items[strings.TrimPrefix(p, root)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":"itemNotFound"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	case r.Method == http.MethodGet && strings.HasPrefix(p, "/v1.0/drives/d1/items/") && strings.HasSuffix(p, "/content"):
		id := strings.TrimSuffix(strings.TrimPrefix(p, "/v1.0/drives/d1/items/"), "/content")
		data, ok := f.content[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusTeapot)
	}
}

func (f *fakeDrive) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func newClient(t *testing.T, f *fakeDrive) *graph.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := graph.New(context.Background(), graph.Credentials{
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		DriveID:      "d1",
		TokenURL:     srv.URL + "/token",
	}, graph.WithBaseURL(srv.URL+"/v1.0/"), graph.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := graph.New(context.Background(), graph.Credentials{ClientID: "c"})
	require.ErrorIs(t, err, graph.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "drive_id")
	assert.Contains(t, err.Error(), "client_secret")
}

func TestResolveCachesHits(t *testing.T) {
	f := newFakeDrive()
	f.items["/KPI/Team Leader.xlsx"] = "abc"
	c := newClient(t, f)
	ctx := context.Background()

	id, err := c.Resolve(ctx, "/KPI/Team Leader.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	id, err = c.Resolve(ctx, "/kpi/team leader.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, 1, f.count("GET /v1.0/drives/d1/root:/KPI/Team Leader.xlsx"))
	assert.Equal(t, 1, f.tokens)
}

func TestResolveNotFoundIsNotCached(t *testing.T) {
	f := newFakeDrive()
	c := newClient(t, f)
	ctx := context.Background()

	_, err := c.Resolve(ctx, "/missing.xlsx")
	require.ErrorIs(t, err, graph.ErrNotFound)
	_, err = c.Resolve(ctx, "/missing.xlsx")
	require.ErrorIs(t, err, graph.ErrNotFound)
	assert.Equal(t, 2, f.count("GET /v1.0/drives/d1/root:/missing.xlsx"))
}

func TestForgetReResolvesReplacedItem(t *testing.T) {
	f := newFakeDrive()
	f.items["/KPI/Chris.xlsx"] = "id1"
	f.content["id1"] = []byte("old")
	c := newClient(t, f)
	ctx := context.Background()

	id, err := c.Resolve(ctx, "/KPI/Chris.xlsx")
	require.NoError(t, err)
	require.Equal(t, "id1", id)

	// The file is deleted and uploaded again under a new id.
	f.mu.Lock()
	f.items["/KPI/Chris.xlsx"] = "id2"
	delete(f.content, "id1")
	f.content["id2"] = []byte("new")
	f.mu.Unlock()

	id, err = c.Resolve(ctx, "/KPI/Chris.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "id1", id, "cached id is served until forgotten")
	_, err = c.Download(ctx, id)
	require.ErrorIs(t, err, graph.ErrNotFound)

	c.Forget("/KPI/Chris.xlsx")
	id, err = c.Resolve(ctx, "/KPI/Chris.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "id2", id)
	data, err := c.Download(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.Equal(t, 2, f.count("GET /v1.0/drives/d1/root:/KPI/Chris.xlsx"))
}

func TestUploadThenDownload(t *testing.T) {
	f := newFakeDrive()
	c := newClient(t, f)
	ctx := context.Background()

	id, err := c.Upload(ctx, "/KPI/Chris.xlsx", []byte("workbook"))
	require.NoError(t, err)
	assert.Equal(t, "id-KPI-Chris.xlsx", id)

	resolved, err := c.Resolve(ctx, "/KPI/Chris.xlsx")
	require.NoError(t, err)
	assert.Equal(t, id, resolved)
	assert.Zero(t, f.count("GET /v1.0/drives/d1/root:/KPI/Chris.xlsx"), "upload seeds the path cache")

	data, err := c.Download(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))

	_, err = c.Download(ctx, "nope")
	require.ErrorIs(t, err, graph.ErrNotFound)
}

func TestCreateFolderCreatesParents(t *testing.T) {
	f := newFakeDrive()
	f.items["/Excel files"] = "root-folder"
	c := newClient(t, f)
	ctx := context.Background()

	id, err := c.CreateFolder(ctx, "/Excel files/KPI/Physio")
	require.NoError(t, err)
	assert.Equal(t, "folder-Physio", id)
	assert.Equal(t, "folder-KPI", f.items["/Excel files/KPI"])
	assert.Zero(t, f.count("POST /v1.0/drives/d1/root/children"))

	again, err := c.CreateFolder(ctx, "/Excel files/KPI/Physio/")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, f.count("POST /v1.0/drives/d1/root:/Excel files/KPI:/children"))
}

func TestCreateFolderAtRoot(t *testing.T) {
	f := newFakeDrive()
	c := newClient(t, f)

	id, err := c.CreateFolder(context.Background(), "/Reports")
	require.NoError(t, err)
	assert.Equal(t, "folder-Reports", id)
	assert.Equal(t, 1, f.count("POST /v1.0/drives/d1/root/children"))
}

func TestSendMail(t *testing.T) {
	f := newFakeDrive()
	c := newClient(t, f)

	err := c.SendMail(context.Background(), graph.Mail{
		From:    "kpi@example.org",
		To:      []string{"lead@example.org", "ops@example.org"},
		Subject: "KPI Tables: Manual action required",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	require.Len(t, f.mail, 1)

	msg := f.mail[0]["message"].(map[string]any)
	assert.Equal(t, "KPI Tables: Manual action required", msg["subject"])
	assert.Len(t, msg["toRecipients"], 2)
	assert.Equal(t, "HTML", msg["body"].(map[string]any)["contentType"])
	assert.Equal(t, "true", f.mail[0]["saveToSentItems"])
	assert.Equal(t, 1, f.count("POST /v1.0/users/kpi@example.org/sendMail"))
}
