package domain

import "context"

// SnapshotStore is the external persistence collaborator. It stores opaque
// versioned envelopes; all graph validation stays in the core.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, projectID string, revision uint64, payload []byte) error
	LoadSnapshot(ctx context.Context, projectID string) ([]byte, uint64, error)
	UpsertStoredView(ctx context.Context, projectID, viewID string, payload []byte) error
	DeleteStoredView(ctx context.Context, projectID, viewID string) error
	ListStoredViews(ctx context.Context, projectID string) ([][]byte, error)
}

// AccessStore backs the API auth subsystem and the audit trail.
type AccessStore interface {
	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	ListUsers(ctx context.Context, query string, limit int) ([]User, error)
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)
	CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreatePermissionIfMissing(ctx context.Context, key string) (uint, error)
	GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error
	AssignRoleToUser(ctx context.Context, userID, roleID uint) error
	GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error)
	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditRecord, error)
}

// CommitObserver is notified after every accepted mutation. The revision
// counter, not object identity, is the cache-invalidation key.
type CommitObserver interface {
	RepositoryChanged(revision uint64)
}

// CommitObserverFunc adapts a plain function to CommitObserver.
type CommitObserverFunc func(revision uint64)

func (f CommitObserverFunc) RepositoryChanged(revision uint64) { f(revision) }
