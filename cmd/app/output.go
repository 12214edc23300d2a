package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/application"
	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/governance"
	"github.com/atvirokodosprendimai/archmap/internal/view"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func strconvUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAttrs(attrs map[string]string) string {
	if len(attrs) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+attrs[k])
	}
	return strings.Join(pairs, ",")
}

func printMetadata(meta domain.Metadata) {
	printKV([][2]string{
		{"project_id", meta.ProjectID},
		{"name", meta.Name},
		{"scope", string(meta.Scope)},
		{"framework", string(meta.Framework)},
		{"enforcement", string(meta.EnforcementMode)},
		{"governance", string(meta.GovernanceMode)},
		{"coverage", string(meta.LifecycleCoverage)},
		{"created_at", formatTime(meta.CreatedAt)},
	})
}

func printElements(items []domain.EaObject) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		deleted := ""
		if item.Deleted {
			deleted = "deleted"
		}
		rows = append(rows, []string{
			item.ID,
			string(item.Type),
			deleted,
			formatAttrs(item.Attributes),
		})
	}
	printTable([]string{"ID", "TYPE", "STATE", "ATTRIBUTES"}, rows)
}

func printRelationships(items []domain.EaRelationship) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.FromID,
			string(item.Type),
			item.ToID,
			formatAttrs(item.Attributes),
		})
	}
	printTable([]string{"FROM", "TYPE", "TO", "ATTRIBUTES"}, rows)
}

func printViews(items []view.Definition) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Name,
			string(item.ViewType),
			string(item.LayoutType),
			string(item.ApprovalStatus),
			formatTime(item.LastModifiedAt),
		})
	}
	printTable([]string{"ID", "NAME", "TYPE", "LAYOUT", "STATUS", "MODIFIED_AT"}, rows)
}

func printResolvedView(resolved view.Resolved) {
	fmt.Printf("view %s: %d nodes, %d edges\n", resolved.ViewID, len(resolved.Nodes), len(resolved.Edges))
	printElements(resolved.Nodes)
	printRelationships(resolved.Edges)
}

func printGovernanceReport(report governance.Report) {
	printKV([][2]string{
		{"mandatory_findings", strconv.Itoa(len(report.MandatoryFindings))},
		{"relationship_errors", strconv.Itoa(len(report.RelationshipErrors))},
		{"relationship_warnings", strconv.Itoa(len(report.RelationshipWarnings))},
		{"invalid_inserts", strconv.Itoa(report.InvalidInsertCount)},
		{"lifecycle_tag_missing", strconv.Itoa(len(report.LifecycleTagMissing))},
		{"as_of", formatTime(report.AsOf)},
	})
	printFindings("mandatory", report.MandatoryFindings)
	printFindings("relationship error", report.RelationshipErrors)
	printFindings("relationship warning", report.RelationshipWarnings)
	printFindings("lifecycle", report.LifecycleTagMissing)
}

func printFindings(category string, findings []governance.Finding) {
	for _, finding := range findings {
		if finding.ObjectID != "" {
			fmt.Printf("  [%s] %s: %s\n", category, finding.ObjectID, finding.Message)
			continue
		}
		fmt.Printf("  [%s] %s\n", category, finding.Message)
	}
}

func printUsers(items []userRow) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Email,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "EMAIL", "CREATED_AT"}, rows)
}

func printRoles(items []roleRow) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Key,
			item.Name,
		})
	}
	printTable([]string{"ID", "KEY", "NAME"}, rows)
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		targetID := item.TargetID
		if targetID == "" {
			targetID = "-"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Action,
			item.TargetType,
			targetID,
			item.ActorUserEmail,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "ACTOR", "AT"}, rows)
}

func printRowErrors(items []application.RowError) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		column := item.Column
		if column == "" {
			column = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Line),
			column,
			string(item.Code),
			item.Message,
		})
	}
	printTable([]string{"LINE", "COLUMN", "CODE", "MESSAGE"}, rows)
}
