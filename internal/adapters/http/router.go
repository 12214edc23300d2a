package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/atvirokodosprendimai/archmap/internal/application"
	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/repository"
	"github.com/atvirokodosprendimai/archmap/internal/view"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const identityKey contextKey = "identity"

type Handler struct {
	service *application.Service
}

func NewRouter(service *application.Service) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", h.handleLogin)
		api.With(h.requireAuth(application.PermRepoRead)).Get("/auth/whoami", h.handleWhoAmI)

		api.With(h.requireAuth(application.PermRepoWrite)).Post("/projects", h.handleCreateProject)
		api.With(h.requireAuth(application.PermRepoRead)).Get("/project", h.handleGetProject)
		api.With(h.requireAuth(application.PermRepoWrite)).Put("/project/metadata", h.handleReplaceMetadata)
		api.With(h.requireAuth(application.PermRepoWrite)).Post("/project/load", h.handleLoadSnapshot)
		api.With(h.requireAuth(application.PermRepoWrite)).Post("/project/save", h.handleSaveSnapshot)

		api.With(h.requireAuth(application.PermRepoRead)).Get("/elements", h.handleListElements)
		api.With(h.requireAuth(application.PermRepoRead)).Get("/elements/{id}", h.handleGetElement)
		api.With(h.requireAuth(application.PermRepoWrite)).Post("/elements", h.handleCreateElement)
		api.With(h.requireAuth(application.PermRepoWrite)).Patch("/elements/{id}", h.handleUpdateElement)
		api.With(h.requireAuth(application.PermRepoWrite)).Delete("/elements/{id}", h.handleDeleteElement)

		api.With(h.requireAuth(application.PermRepoRead)).Get("/relationships", h.handleListRelationships)
		api.With(h.requireAuth(application.PermRepoWrite)).Post("/relationships", h.handleCreateRelationship)
		api.With(h.requireAuth(application.PermRepoWrite)).Post("/relationships/delete", h.handleDeleteRelationship)

		api.With(h.requireAuth(application.PermRepoWrite)).Post("/history/undo", h.handleUndo)
		api.With(h.requireAuth(application.PermRepoWrite)).Post("/history/redo", h.handleRedo)

		api.With(h.requireAuth(application.PermRepoRead)).Get("/views", h.handleListViews)
		api.With(h.requireAuth(application.PermRepoRead)).Get("/views/{id}", h.handleGetView)
		api.With(h.requireAuth(application.PermRepoRead)).Get("/views/{id}/resolved", h.handleResolveView)
		api.With(h.requireAuth(application.PermRepoWrite)).Post("/views", h.handleCreateView)
		api.With(h.requireAuth(application.PermRepoWrite)).Delete("/views/{id}", h.handleDeleteView)

		api.With(h.requireAuth(application.PermRepoRead)).Get("/governance/report", h.handleGovernanceReport)
		api.With(h.requireAuth(application.PermGovernanceAdmin)).Get("/audit/logs", h.handleListAuditLogs)

		api.With(h.requireAuth(application.PermGovernanceAdmin)).Get("/access/users", h.handleListUsers)
		api.With(h.requireAuth(application.PermGovernanceAdmin)).Post("/access/users", h.handleCreateUser)
		api.With(h.requireAuth(application.PermGovernanceAdmin)).Get("/access/roles", h.handleListRoles)

		api.With(h.requireAuth(application.PermRepoWrite)).Post("/import", h.handleImport)
	})

	return r
}

func (h *Handler) requireAuth(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := h.authenticateRequest(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
				return
			}
			if !h.service.Can(identity, permission) {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = application.WithActor(ctx, identity.User.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) authenticateRequest(r *http.Request) (domain.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		identity, err := h.service.AuthenticateBearerToken(r.Context(), token)
		if err == nil {
			return identity, true
		}
	}
	return domain.Identity{}, false
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TokenName string `json:"token_name"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	u, token, err := h.service.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "token": token})
}

func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	perms := make([]string, 0, len(identity.Permissions))
	for p := range identity.Permissions {
		perms = append(perms, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": identity.User.ID, "email": identity.User.Email, "permissions": perms})
}

type createProjectRequest struct {
	Name              string `json:"name"`
	Scope             string `json:"scope"`
	Framework         string `json:"framework"`
	EnforcementMode   string `json:"enforcement_mode"`
	GovernanceMode    string `json:"governance_mode"`
	LifecycleCoverage string `json:"lifecycle_coverage"`
	TimeHorizon       string `json:"time_horizon"`
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	meta, err := h.service.NewProject(r.Context(), req.Name, domain.Metadata{
		Scope:             domain.ArchitectureScope(req.Scope),
		Framework:         domain.ReferenceFramework(req.Framework),
		EnforcementMode:   domain.GovernanceEnforcementMode(req.EnforcementMode),
		GovernanceMode:    domain.GovernanceMode(req.GovernanceMode),
		LifecycleCoverage: domain.LifecycleCoverage(req.LifecycleCoverage),
		TimeHorizon:       req.TimeHorizon,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	meta, loaded := h.service.Metadata()
	if !loaded {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no repository loaded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": meta, "revision": h.service.Revision()})
}

func (h *Handler) handleReplaceMetadata(w http.ResponseWriter, r *http.Request) {
	var meta domain.Metadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if err := h.service.ReplaceMetadata(r.Context(), meta); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type loadSnapshotRequest struct {
	ProjectID string `json:"project_id"`
}

func (h *Handler) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	var req loadSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if err := h.service.LoadSnapshot(r.Context(), req.ProjectID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "revision": h.service.Revision()})
}

func (h *Handler) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SaveSnapshot(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "revision": h.service.Revision()})
}

func (h *Handler) handleListElements(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Objects()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetElement(w http.ResponseWriter, r *http.Request) {
	obj, err := h.service.Object(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

type createElementRequest struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (h *Handler) handleCreateElement(w http.ResponseWriter, r *http.Request) {
	var req createElementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if err := h.service.AddObject(r.Context(), req.ID, domain.ObjectType(req.Type), req.Attributes); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type updateElementRequest struct {
	Attributes map[string]string `json:"attributes"`
	Mode       string            `json:"mode"`
	Restore    bool              `json:"restore"`
}

func (h *Handler) handleUpdateElement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateElementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if req.Restore {
		if err := h.service.RestoreObject(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	mode := repository.UpdateMode(req.Mode)
	if req.Mode == "" {
		mode = repository.UpdateMerge
	}
	if err := h.service.UpdateObjectAttributes(r.Context(), id, req.Attributes, mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleDeleteElement(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteObject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Relationships()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type relationshipRequest struct {
	FromID     string            `json:"fromId"`
	ToID       string            `json:"toId"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (h *Handler) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if err := h.service.AddRelationship(r.Context(), req.FromID, req.ToID, domain.RelationshipType(req.Type), req.Attributes); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if err := h.service.DeleteRelationship(r.Context(), req.FromID, req.ToID, domain.RelationshipType(req.Type)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Undo(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "revision": h.service.Revision()})
}

func (h *Handler) handleRedo(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Redo(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "revision": h.service.Revision()})
}

func (h *Handler) handleListViews(w http.ResponseWriter, r *http.Request) {
	if viewType := strings.TrimSpace(r.URL.Query().Get("type")); viewType != "" {
		items, err := h.service.ViewsByType(view.ViewType(viewType))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}
	items, err := h.service.ListViews()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetView(w http.ResponseWriter, r *http.Request) {
	def, err := h.service.ViewByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *Handler) handleResolveView(w http.ResponseWriter, r *http.Request) {
	resolved, err := h.service.ResolveView(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (h *Handler) handleCreateView(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	def, err := h.service.CreateView(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *Handler) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteView(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleGovernanceReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GovernanceReport()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAuditLogs(r.Context(), 500)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type createUserRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	u, err := h.service.CreateUserWithRole(r.Context(), req.Email, req.Password, req.Role, req.Permissions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "email": u.Email})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), r.URL.Query().Get("q"), 200)
	if err != nil {
		writeError(w, err)
		return
	}
	// Password hashes stay server-side.
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]any{"id": u.ID, "email": u.Email, "createdAt": u.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		out = append(out, map[string]any{"id": role.ID, "key": role.Key, "name": role.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

type importRequest struct {
	Elements      []application.ImportElement      `json:"elements"`
	Relationships []application.ImportRelationship `json:"relationships"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	summary, rowErrors, err := h.service.ImportBatch(r.Context(), application.ImportBatch{
		Elements:      req.Elements,
		Relationships: req.Relationships,
	})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"ok":         false,
			"error":      err.Error(),
			"code":       domain.CodeOf(err),
			"row_errors": rowErrors,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "summary": summary})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch domain.CodeOf(err) {
	case domain.CodeUnknownReference:
		status = http.StatusNotFound
	case domain.CodeDuplicateID:
		status = http.StatusConflict
	case domain.CodePolicyViolation, domain.CodeGovernanceBlock:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error(), "code": domain.CodeOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
