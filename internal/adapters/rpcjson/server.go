package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/application"
	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/repository"
	"github.com/atvirokodosprendimai/archmap/internal/view"
)

type Server struct {
	service  *application.Service
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  any         `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.Service) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "auth.login":
		return s.handleAuthLogin(ctx, req)
	case "auth.whoami":
		identity, rpcResp, ok := s.authz(ctx, req, "")
		if !ok {
			return rpcResp
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"id": identity.User.ID, "email": identity.User.Email}, ID: req.ID}
	case "project.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token             string `json:"token"`
			Name              string `json:"name"`
			Scope             string `json:"scope"`
			Framework         string `json:"framework"`
			EnforcementMode   string `json:"enforcement_mode"`
			GovernanceMode    string `json:"governance_mode"`
			LifecycleCoverage string `json:"lifecycle_coverage"`
			TimeHorizon       string `json:"time_horizon"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		meta, err := s.service.NewProject(actorCtx(ctx, identity), p.Name, domain.Metadata{
			Scope:             domain.ArchitectureScope(p.Scope),
			Framework:         domain.ReferenceFramework(p.Framework),
			EnforcementMode:   domain.GovernanceEnforcementMode(p.EnforcementMode),
			GovernanceMode:    domain.GovernanceMode(p.GovernanceMode),
			LifecycleCoverage: domain.LifecycleCoverage(p.LifecycleCoverage),
			TimeHorizon:       p.TimeHorizon,
		})
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: meta, ID: req.ID}
	case "project.get":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRepoRead)
		if !ok {
			return rpcResp
		}
		meta, loaded := s.service.Metadata()
		if !loaded {
			return appError(req.ID, domain.Errorf(domain.CodeUnknownReference, "no repository loaded"))
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"metadata": meta, "revision": s.service.Revision()}, ID: req.ID}
	case "project.save":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		if err := s.service.SaveSnapshot(actorCtx(ctx, identity)); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true, "revision": s.service.Revision()}, ID: req.ID}
	case "project.load":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token     string `json:"token"`
			ProjectID string `json:"project_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.LoadSnapshot(actorCtx(ctx, identity), p.ProjectID); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true, "revision": s.service.Revision()}, ID: req.ID}
	case "elements.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRepoRead)
		if !ok {
			return rpcResp
		}
		out, err := s.service.Objects()
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "elements.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token      string            `json:"token"`
			ID         string            `json:"id"`
			Type       string            `json:"type"`
			Attributes map[string]string `json:"attributes"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.AddObject(actorCtx(ctx, identity), p.ID, domain.ObjectType(p.Type), p.Attributes); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "elements.update":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token      string            `json:"token"`
			ID         string            `json:"id"`
			Attributes map[string]string `json:"attributes"`
			Mode       string            `json:"mode"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		mode := repository.UpdateMode(p.Mode)
		if p.Mode == "" {
			mode = repository.UpdateMerge
		}
		if err := s.service.UpdateObjectAttributes(actorCtx(ctx, identity), p.ID, p.Attributes, mode); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "elements.delete":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			ID    string `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteObject(actorCtx(ctx, identity), p.ID); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "elements.restore":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			ID    string `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.RestoreObject(actorCtx(ctx, identity), p.ID); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "relationships.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRepoRead)
		if !ok {
			return rpcResp
		}
		out, err := s.service.Relationships()
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "relationships.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token      string            `json:"token"`
			FromID     string            `json:"from_id"`
			ToID       string            `json:"to_id"`
			Type       string            `json:"type"`
			Attributes map[string]string `json:"attributes"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.AddRelationship(actorCtx(ctx, identity), p.FromID, p.ToID, domain.RelationshipType(p.Type), p.Attributes); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "relationships.delete":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token  string `json:"token"`
			FromID string `json:"from_id"`
			ToID   string `json:"to_id"`
			Type   string `json:"type"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteRelationship(actorCtx(ctx, identity), p.FromID, p.ToID, domain.RelationshipType(p.Type)); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "history.undo":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		if err := s.service.Undo(actorCtx(ctx, identity)); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true, "revision": s.service.Revision()}, ID: req.ID}
	case "history.redo":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		if err := s.service.Redo(actorCtx(ctx, identity)); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true, "revision": s.service.Revision()}, ID: req.ID}
	case "views.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRepoRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Type  string `json:"type"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if strings.TrimSpace(p.Type) != "" {
			out, err := s.service.ViewsByType(view.ViewType(p.Type))
			if err != nil {
				return appError(req.ID, err)
			}
			return response{JSONRPC: "2.0", Result: out, ID: req.ID}
		}
		out, err := s.service.ListViews()
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "views.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token      string          `json:"token"`
			Definition json.RawMessage `json:"definition"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateView(actorCtx(ctx, identity), p.Definition)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "views.delete":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			ID    string `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteView(actorCtx(ctx, identity), p.ID); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "views.resolve":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRepoRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			ID    string `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ResolveView(p.ID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "governance.report":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRepoRead)
		if !ok {
			return rpcResp
		}
		out, err := s.service.GovernanceReport()
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "audit.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermGovernanceAdmin)
		if !ok {
			return rpcResp
		}
		out, err := s.service.ListAuditLogs(ctx, 500)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "access.user.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermGovernanceAdmin)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token       string   `json:"token"`
			Email       string   `json:"email"`
			Password    string   `json:"password"`
			Role        string   `json:"role"`
			Permissions []string `json:"permissions"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		u, err := s.service.CreateUserWithRole(actorCtx(ctx, identity), p.Email, p.Password, p.Role, p.Permissions)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"id": u.ID, "email": u.Email}, ID: req.ID}
	case "access.user.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermGovernanceAdmin)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Query string `json:"q"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListUsers(ctx, p.Query, 200)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: userSummaries(out), ID: req.ID}
	case "access.role.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermGovernanceAdmin)
		if !ok {
			return rpcResp
		}
		out, err := s.service.ListRoles(ctx)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: roleSummaries(out), ID: req.ID}
	case "import.batch":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermRepoWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token         string                           `json:"token"`
			Elements      []application.ImportElement      `json:"elements"`
			Relationships []application.ImportRelationship `json:"relationships"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		summary, rowErrors, err := s.service.ImportBatch(actorCtx(ctx, identity), application.ImportBatch{
			Elements:      p.Elements,
			Relationships: p.Relationships,
		})
		if err != nil {
			return response{JSONRPC: "2.0", Result: map[string]any{"ok": false, "row_errors": rowErrors, "error": err.Error()}, ID: req.ID}
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true, "summary": summary}, ID: req.ID}
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.service.LoginWithAPIToken(ctx, p.Email, p.Password, p.TokenName, nil)
	if err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "invalid credentials"}, ID: req.ID}
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "email": u.Email, "token": token}, ID: req.ID}
}

func (s *Server) authz(ctx context.Context, req request, permission string) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.service.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "unauthorized"}, ID: req.ID}, false
	}
	if permission != "" && !s.service.Can(identity, permission) {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: 40300, Message: "forbidden"}, ID: req.ID}, false
	}
	return identity, response{}, true
}

// userSummary never carries the password hash over the wire.
type userSummary struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type roleSummary struct {
	ID   uint   `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

func userSummaries(users []domain.User) []userSummary {
	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, userSummary{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt})
	}
	return out
}

func roleSummaries(roles []domain.Role) []roleSummary {
	out := make([]roleSummary, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleSummary{ID: r.ID, Key: r.Key, Name: r.Name})
	}
	return out
}

func actorCtx(ctx context.Context, identity domain.Identity) context.Context {
	return application.WithActor(ctx, identity.User.ID)
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func appError(id any, err error) response {
	message := err.Error()
	if code := domain.CodeOf(err); code != "" {
		message = fmt.Sprintf("%s: %s", code, message)
	}
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 40000, Message: message}, ID: id}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
