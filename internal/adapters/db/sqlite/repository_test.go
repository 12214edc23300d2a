package sqlite

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "archmap_test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewStore(db)
}

func TestSnapshotUpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.SaveSnapshot(ctx, "p-1", 3, []byte(`{"version":1}`)); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if err := store.SaveSnapshot(ctx, "p-1", 7, []byte(`{"version":1,"objects":[]}`)); err != nil {
		t.Fatalf("save snapshot again: %v", err)
	}

	payload, revision, err := store.LoadSnapshot(ctx, "p-1")
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if revision != 7 {
		t.Fatalf("revision = %d, want 7 (upsert must replace)", revision)
	}
	if !bytes.Equal(payload, []byte(`{"version":1,"objects":[]}`)) {
		t.Fatalf("payload = %s", payload)
	}

	if _, _, err := store.LoadSnapshot(ctx, "missing"); !domain.IsCode(err, domain.CodeUnknownReference) {
		t.Fatalf("expected UnknownReference, got %v", err)
	}
}

func TestStoredViewLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertStoredView(ctx, "p-1", "v-1", []byte(`{"id":"v-1"}`)); err != nil {
		t.Fatalf("upsert view: %v", err)
	}
	if err := store.UpsertStoredView(ctx, "p-1", "v-2", []byte(`{"id":"v-2"}`)); err != nil {
		t.Fatalf("upsert view: %v", err)
	}
	if err := store.UpsertStoredView(ctx, "p-2", "v-1", []byte(`{"id":"other"}`)); err != nil {
		t.Fatalf("upsert view: %v", err)
	}
	if err := store.UpsertStoredView(ctx, "p-1", "v-1", []byte(`{"id":"v-1","name":"x"}`)); err != nil {
		t.Fatalf("upsert existing view: %v", err)
	}

	views, err := store.ListStoredViews(ctx, "p-1")
	if err != nil {
		t.Fatalf("list views: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	if !bytes.Equal(views[0], []byte(`{"id":"v-1","name":"x"}`)) {
		t.Fatalf("first view = %s", views[0])
	}

	if err := store.DeleteStoredView(ctx, "p-1", "v-1"); err != nil {
		t.Fatalf("delete view: %v", err)
	}
	views, _ = store.ListStoredViews(ctx, "p-1")
	if len(views) != 1 {
		t.Fatalf("views after delete = %d, want 1", len(views))
	}
}

func TestUserRolesAndPermissions(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	u, err := store.CreateUser(ctx, domain.User{Email: "Architect@Example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "architect@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	count, err := store.CountUsers(ctx)
	if err != nil || count != 1 {
		t.Fatalf("count users = %d, err %v", count, err)
	}

	roleID, err := store.CreateRoleIfMissing(ctx, "editor", "Editor")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	sameRoleID, err := store.CreateRoleIfMissing(ctx, "editor", "Editor Again")
	if err != nil || sameRoleID != roleID {
		t.Fatalf("role not reused: %d vs %d, err %v", sameRoleID, roleID, err)
	}

	readID, err := store.CreatePermissionIfMissing(ctx, "repo.read")
	if err != nil {
		t.Fatalf("create permission: %v", err)
	}
	writeID, err := store.CreatePermissionIfMissing(ctx, "repo.write")
	if err != nil {
		t.Fatalf("create permission: %v", err)
	}
	if err := store.GrantPermissionToRole(ctx, roleID, readID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := store.GrantPermissionToRole(ctx, roleID, writeID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := store.AssignRoleToUser(ctx, u.ID, roleID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	perms, err := store.GetPermissionsByUserID(ctx, u.ID)
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("permissions = %v, want 2", perms)
	}
}

func TestAPITokenLookup(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	u, err := store.CreateUser(ctx, domain.User{Email: "a@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	expires := time.Now().UTC().Add(time.Hour)
	tok, err := store.CreateAPIToken(ctx, domain.APIToken{UserID: u.ID, Name: "cli", TokenHash: "abc123", ExpiresAt: &expires})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	found, err := store.GetAPITokenByTokenHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if found.ID != tok.ID || found.UserID != u.ID {
		t.Fatalf("token = %+v", found)
	}
	if _, err := store.GetAPITokenByTokenHash(ctx, "nope"); err == nil {
		t.Fatal("expected lookup failure for unknown hash")
	}
}

func TestAuditLogJoinsActorEmail(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	u, err := store.CreateUser(ctx, domain.User{Email: "a@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "snapshot.save", TargetType: "project", TargetID: "p-1", Metadata: "revision 4"}); err != nil {
		t.Fatalf("create audit log: %v", err)
	}
	if err := store.CreateAuditLog(ctx, domain.AuditLog{Action: "project.create", TargetType: "project", TargetID: "p-2"}); err != nil {
		t.Fatalf("create audit log: %v", err)
	}

	records, err := store.ListAuditLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	// Newest first.
	if records[0].Action != "project.create" || records[0].ActorUserEmail != "" {
		t.Fatalf("first record = %+v", records[0])
	}
	if records[1].ActorUserEmail != "a@example.com" || records[1].TargetID != "p-1" {
		t.Fatalf("second record = %+v", records[1])
	}
}
