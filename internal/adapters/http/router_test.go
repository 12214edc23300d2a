package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	sqliteadapter "github.com/atvirokodosprendimai/archmap/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/archmap/internal/application"
)

func newTestServer(t *testing.T) (*httptest.Server, *application.Service) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "archmap_test.db")

	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	store := sqliteadapter.NewStore(db)
	service := application.NewService(nil, store, store)
	if err := service.BootstrapAdmin(ctx, "admin@example.com", "secret"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}

	srv := httptest.NewServer(NewRouter(service))
	t.Cleanup(srv.Close)
	return srv, service
}

func login(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()
	body := strings.NewReader(`{"email":"` + email + `","password":"` + password + `"}`)
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", body)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out.Token
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestAccessUserProvisioningRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	adminToken := login(t, srv, "admin@example.com", "secret")

	resp := doRequest(t, srv, http.MethodPost, "/api/access/users", adminToken,
		`{"email":"reader@example.com","password":"pw","role":"viewer","permissions":["repo.read"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create user status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, "/api/access/users", adminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users status = %d", resp.StatusCode)
	}
	var users []struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	_ = resp.Body.Close()
	if len(users) != 2 {
		t.Fatalf("listed %d users, want admin plus the new viewer", len(users))
	}

	resp = doRequest(t, srv, http.MethodGet, "/api/access/roles", adminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list roles status = %d", resp.StatusCode)
	}
	var roles []struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&roles); err != nil {
		t.Fatalf("decode roles: %v", err)
	}
	_ = resp.Body.Close()
	keys := make(map[string]bool, len(roles))
	for _, role := range roles {
		keys[role.Key] = true
	}
	if !keys["admin"] || !keys["viewer"] {
		t.Fatalf("roles = %v, want admin and viewer", keys)
	}
}

func TestAccessEndpointsRequireGovernanceAdmin(t *testing.T) {
	srv, _ := newTestServer(t)
	adminToken := login(t, srv, "admin@example.com", "secret")

	resp := doRequest(t, srv, http.MethodPost, "/api/access/users", adminToken,
		`{"email":"writer@example.com","password":"pw","role":"editor","permissions":["repo.read","repo.write"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create user status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	writerToken := login(t, srv, "writer@example.com", "pw")
	resp = doRequest(t, srv, http.MethodGet, "/api/access/users", writerToken, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin list users status = %d, want 403", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// repo.write still covers graph mutations.
	resp = doRequest(t, srv, http.MethodPost, "/api/projects", writerToken, `{"name":"demo"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("project create with repo.write status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}
