package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/application"
	"github.com/atvirokodosprendimai/archmap/internal/governance"
)

type projectParams struct {
	Name              string `json:"name"`
	Scope             string `json:"scope"`
	Framework         string `json:"framework"`
	EnforcementMode   string `json:"enforcement_mode"`
	GovernanceMode    string `json:"governance_mode"`
	LifecycleCoverage string `json:"lifecycle_coverage"`
	TimeHorizon       string `json:"time_horizon"`
}

type governanceReport = governance.Report

type importResult struct {
	OK        bool                      `json:"ok"`
	Summary   application.ImportSummary `json:"summary"`
	RowErrors []application.RowError    `json:"row_errors"`
	Error     string                    `json:"error"`
}

type userRow struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type roleRow struct {
	ID   uint   `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	params := map[string]any{"email": email, "password": password, "token_name": tokenName}
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "auth.login", params, out)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/auth/login", params, out)
}

func doWhoAmI(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "auth.whoami", map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodGet, "/api/auth/whoami", nil, out)
}

func doProjectCreate(ctx context.Context, cfg cliConfig, params projectParams, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "project.create", map[string]any{
			"token":              cfg.Token,
			"name":               params.Name,
			"scope":              params.Scope,
			"framework":          params.Framework,
			"enforcement_mode":   params.EnforcementMode,
			"governance_mode":    params.GovernanceMode,
			"lifecycle_coverage": params.LifecycleCoverage,
			"time_horizon":       params.TimeHorizon,
		}, out)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/projects", params, out)
}

func doProjectGet(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "project.get", map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodGet, "/api/project", nil, out)
}

func doProjectSave(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "project.save", map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/project/save", map[string]any{}, out)
}

func doProjectLoad(ctx context.Context, cfg cliConfig, projectID string, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "project.load", map[string]any{"token": cfg.Token, "project_id": projectID}, out)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/project/load", map[string]any{"project_id": projectID}, out)
}

func doElementsList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "elements.list", map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodGet, "/api/elements", nil, out)
}

func doElementCreate(ctx context.Context, cfg cliConfig, id, elementType string, attrs map[string]string) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "elements.create", map[string]any{"token": cfg.Token, "id": id, "type": elementType, "attributes": attrs}, nil)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/elements", map[string]any{"id": id, "type": elementType, "attributes": attrs}, nil)
}

func doElementUpdate(ctx context.Context, cfg cliConfig, id string, attrs map[string]string, mode string) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "elements.update", map[string]any{"token": cfg.Token, "id": id, "attributes": attrs, "mode": mode}, nil)
	}
	return cfg.api().do(ctx, http.MethodPatch, "/api/elements/"+id, map[string]any{"attributes": attrs, "mode": mode}, nil)
}

func doElementDelete(ctx context.Context, cfg cliConfig, id string) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "elements.delete", map[string]any{"token": cfg.Token, "id": id}, nil)
	}
	return cfg.api().do(ctx, http.MethodDelete, "/api/elements/"+id, nil, nil)
}

func doElementRestore(ctx context.Context, cfg cliConfig, id string) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "elements.restore", map[string]any{"token": cfg.Token, "id": id}, nil)
	}
	return cfg.api().do(ctx, http.MethodPatch, "/api/elements/"+id, map[string]any{"restore": true}, nil)
}

func doRelationshipsList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "relationships.list", map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodGet, "/api/relationships", nil, out)
}

func doRelationshipCreate(ctx context.Context, cfg cliConfig, from, to, relType string, attrs map[string]string) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "relationships.create", map[string]any{"token": cfg.Token, "from_id": from, "to_id": to, "type": relType, "attributes": attrs}, nil)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/relationships", map[string]any{"fromId": from, "toId": to, "type": relType, "attributes": attrs}, nil)
}

func doRelationshipDelete(ctx context.Context, cfg cliConfig, from, to, relType string) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "relationships.delete", map[string]any{"token": cfg.Token, "from_id": from, "to_id": to, "type": relType}, nil)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/relationships/delete", map[string]any{"fromId": from, "toId": to, "type": relType}, nil)
}

func doHistory(ctx context.Context, cfg cliConfig, rpcMethod, httpPath string, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, rpcMethod, map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodPost, httpPath, map[string]any{}, out)
}

func doViewsList(ctx context.Context, cfg cliConfig, viewType string, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "views.list", map[string]any{"token": cfg.Token, "type": viewType}, out)
	}
	path := "/api/views"
	if viewType != "" {
		path += "?type=" + viewType
	}
	return cfg.api().do(ctx, http.MethodGet, path, nil, out)
}

func doViewCreate(ctx context.Context, cfg cliConfig, definition []byte, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "views.create", map[string]any{"token": cfg.Token, "definition": json.RawMessage(definition)}, out)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/views", json.RawMessage(definition), out)
}

func doViewResolve(ctx context.Context, cfg cliConfig, id string, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "views.resolve", map[string]any{"token": cfg.Token, "id": id}, out)
	}
	return cfg.api().do(ctx, http.MethodGet, "/api/views/"+id+"/resolved", nil, out)
}

func doViewDelete(ctx context.Context, cfg cliConfig, id string) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "views.delete", map[string]any{"token": cfg.Token, "id": id}, nil)
	}
	return cfg.api().do(ctx, http.MethodDelete, "/api/views/"+id, nil, nil)
}

func doGovernanceReport(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "governance.report", map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodGet, "/api/governance/report", nil, out)
}

func doAuditList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "audit.list", map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodGet, "/api/audit/logs", nil, out)
}

func doUsersList(ctx context.Context, cfg cliConfig, q string, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "access.user.list", map[string]any{"token": cfg.Token, "q": q}, out)
	}
	path := "/api/access/users"
	if q != "" {
		path += "?q=" + q
	}
	return cfg.api().do(ctx, http.MethodGet, path, nil, out)
}

func doUsersCreate(ctx context.Context, cfg cliConfig, email, password, role string, permissions []string, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "access.user.create", map[string]any{
			"token":       cfg.Token,
			"email":       email,
			"password":    password,
			"role":        role,
			"permissions": permissions,
		}, out)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/access/users", map[string]any{
		"email":       email,
		"password":    password,
		"role":        role,
		"permissions": permissions,
	}, out)
}

func doRolesList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "access.role.list", map[string]any{"token": cfg.Token}, out)
	}
	return cfg.api().do(ctx, http.MethodGet, "/api/access/roles", nil, out)
}

func doImportBatch(ctx context.Context, cfg cliConfig, batch application.ImportBatch, out *importResult) error {
	if cfg.Transport == "uds" {
		return cfg.rpc().call(ctx, "import.batch", map[string]any{
			"token":         cfg.Token,
			"elements":      batch.Elements,
			"relationships": batch.Relationships,
		}, out)
	}
	return cfg.api().do(ctx, http.MethodPost, "/api/import", map[string]any{
		"elements":      batch.Elements,
		"relationships": batch.Relationships,
	}, out)
}

func splitCSVFlag(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseAttrs(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	attrs := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected key=value", pair)
		}
		attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return attrs, nil
}

func uintToString(v uint) string {
	return fmt.Sprintf("%d", v)
}
