package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	PermRepoRead        = "repo.read"
	PermRepoWrite       = "repo.write"
	PermGovernanceAdmin = "governance.admin"
)

// BootstrapAdmin creates the initial admin user when the user table is
// empty. Safe to call on every startup.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) error {
	if s.access == nil {
		return domain.Errorf(domain.CodeUnknownReference, "no access store configured")
	}
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return domain.Errorf(domain.CodeMissingField, "bootstrap admin email and password are required")
	}

	count, err := s.access.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	u, err := s.access.CreateUser(ctx, domain.User{Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: hash})
	if err != nil {
		return err
	}

	adminRoleID, err := s.access.CreateRoleIfMissing(ctx, "admin", "Administrator")
	if err != nil {
		return err
	}
	permID, err := s.access.CreatePermissionIfMissing(ctx, "*")
	if err != nil {
		return err
	}
	if err := s.access.GrantPermissionToRole(ctx, adminRoleID, permID); err != nil {
		return err
	}
	if err := s.access.AssignRoleToUser(ctx, u.ID, adminRoleID); err != nil {
		return err
	}

	return s.access.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.bootstrap_admin", TargetType: "user", TargetID: strconv.FormatUint(uint64(u.ID), 10), Metadata: "initial admin created"})
}

// CreateUserWithRole provisions an additional user and grants the named role
// with the given permission keys.
func (s *Service) CreateUserWithRole(ctx context.Context, email, password, roleKey string, permissions []string) (domain.User, error) {
	if s.access == nil {
		return domain.User{}, domain.Errorf(domain.CodeUnknownReference, "no access store configured")
	}
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return domain.User{}, domain.Errorf(domain.CodeMissingField, "email and password are required")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.access.CreateUser(ctx, domain.User{Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: hash})
	if err != nil {
		return domain.User{}, err
	}
	roleID, err := s.access.CreateRoleIfMissing(ctx, roleKey, roleKey)
	if err != nil {
		return domain.User{}, err
	}
	for _, perm := range permissions {
		permID, err := s.access.CreatePermissionIfMissing(ctx, perm)
		if err != nil {
			return domain.User{}, err
		}
		if err := s.access.GrantPermissionToRole(ctx, roleID, permID); err != nil {
			return domain.User{}, err
		}
	}
	if err := s.access.AssignRoleToUser(ctx, u.ID, roleID); err != nil {
		return domain.User{}, err
	}
	s.writeAudit(ctx, actorFromContext(ctx), "auth.user.create", "user", strconv.FormatUint(uint64(u.ID), 10), roleKey)
	return u, nil
}

// LoginWithAPIToken exchanges credentials for a long-lived bearer token.
// The plaintext token is returned once; only its hash is stored.
func (s *Service) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	_, err = s.access.CreateAPIToken(ctx, domain.APIToken{
		UserID:    u.ID,
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.User{}, "", err
	}

	s.writeAudit(ctx, &u.ID, "auth.login.api_token", "user", strconv.FormatUint(uint64(u.ID), 10), "api token issued")
	return u, plain, nil
}

func (s *Service) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	if s.access == nil {
		return domain.Identity{}, domain.Errorf(domain.CodeUnknownReference, "no access store configured")
	}
	hash := hashToken(token)
	apit, err := s.access.GetAPITokenByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, domain.Errorf(domain.CodePolicyViolation, "unauthorized")
	}
	if apit.ExpiresAt != nil && apit.ExpiresAt.Before(time.Now().UTC()) {
		return domain.Identity{}, domain.Errorf(domain.CodePolicyViolation, "token expired")
	}

	return s.identityByUserID(ctx, apit.UserID)
}

func (s *Service) Can(identity domain.Identity, permission string) bool {
	if _, ok := identity.Permissions["*"]; ok {
		return true
	}
	_, ok := identity.Permissions[permission]
	return ok
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if s.access == nil {
		return nil, domain.Errorf(domain.CodeUnknownReference, "no access store configured")
	}
	return s.access.ListAuditLogs(ctx, limit)
}

func (s *Service) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	if s.access == nil {
		return nil, domain.Errorf(domain.CodeUnknownReference, "no access store configured")
	}
	return s.access.ListUsers(ctx, query, limit)
}

func (s *Service) ListRoles(ctx context.Context) ([]domain.Role, error) {
	if s.access == nil {
		return nil, domain.Errorf(domain.CodeUnknownReference, "no access store configured")
	}
	return s.access.ListRoles(ctx)
}

func (s *Service) authenticateEmailPassword(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.access.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, domain.Errorf(domain.CodePolicyViolation, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.Errorf(domain.CodePolicyViolation, "invalid credentials")
	}
	return u, nil
}

func (s *Service) identityByUserID(ctx context.Context, userID uint) (domain.Identity, error) {
	u, err := s.access.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, domain.Errorf(domain.CodePolicyViolation, "unauthorized")
	}
	permList, err := s.access.GetPermissionsByUserID(ctx, userID)
	if err != nil {
		return domain.Identity{}, err
	}
	permMap := make(map[string]struct{}, len(permList))
	for _, p := range permList {
		permMap[p] = struct{}{}
	}
	return domain.Identity{User: u, Permissions: permMap}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
