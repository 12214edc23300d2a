package application

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/metamodel"
	"github.com/atvirokodosprendimai/archmap/internal/policy"
	"github.com/atvirokodosprendimai/archmap/internal/repository"
	"go.uber.org/zap"
)

// ImportElement is one element row of a batch, carrying its source line for
// error reporting.
type ImportElement struct {
	Line       int
	ID         string
	Type       domain.ObjectType
	Attributes map[string]string
}

// ImportRelationship is one relationship row of a batch.
type ImportRelationship struct {
	Line       int
	FromID     string
	ToID       string
	Type       domain.RelationshipType
	Attributes map[string]string
}

// ImportBatch is a parsed bulk load: all elements first, then relationships.
type ImportBatch struct {
	Elements      []ImportElement
	Relationships []ImportRelationship
}

// RowError ties a rejection to the source row that caused it.
type RowError struct {
	Line    int              `json:"line"`
	Code    domain.ErrorCode `json:"code"`
	Column  string           `json:"column,omitempty"`
	Message string           `json:"message"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %s: %s (%s)", e.Line, e.Column, e.Message, e.Code)
	}
	return fmt.Sprintf("line %d: %s (%s)", e.Line, e.Message, e.Code)
}

// ImportSummary reports what an accepted batch added.
type ImportSummary struct {
	ElementCount      int `json:"elementCount"`
	RelationshipCount int `json:"relationshipCount"`
}

// elementCSVHeader and relationshipCSVHeader are the fixed leading columns;
// any further columns become attributes keyed by their header name.
var (
	elementCSVHeader      = []string{"id", "type"}
	relationshipCSVHeader = []string{"fromId", "toId", "type"}
)

// ParseElementCSV reads an element sheet. Header row is required.
func ParseElementCSV(r io.Reader) ([]ImportElement, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, domain.Errorf(domain.CodeMissingField, "element csv has no header row")
	}
	if err := checkHeader(header, elementCSVHeader); err != nil {
		return nil, err
	}

	var elements []ImportElement
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, domain.Errorf(domain.CodeInvalidType, "element csv line %d: %v", line, err)
		}
		attrs := make(map[string]string)
		for i := len(elementCSVHeader); i < len(header) && i < len(record); i++ {
			if v := strings.TrimSpace(record[i]); v != "" {
				attrs[strings.TrimSpace(header[i])] = v
			}
		}
		elements = append(elements, ImportElement{
			Line:       line,
			ID:         strings.TrimSpace(record[0]),
			Type:       domain.ObjectType(strings.TrimSpace(record[1])),
			Attributes: attrs,
		})
	}
	return elements, nil
}

// ParseRelationshipCSV reads a relationship sheet. Header row is required.
func ParseRelationshipCSV(r io.Reader) ([]ImportRelationship, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, domain.Errorf(domain.CodeMissingField, "relationship csv has no header row")
	}
	if err := checkHeader(header, relationshipCSVHeader); err != nil {
		return nil, err
	}

	var relationships []ImportRelationship
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, domain.Errorf(domain.CodeInvalidType, "relationship csv line %d: %v", line, err)
		}
		attrs := make(map[string]string)
		for i := len(relationshipCSVHeader); i < len(header) && i < len(record); i++ {
			if v := strings.TrimSpace(record[i]); v != "" {
				attrs[strings.TrimSpace(header[i])] = v
			}
		}
		relationships = append(relationships, ImportRelationship{
			Line:       line,
			FromID:     strings.TrimSpace(record[0]),
			ToID:       strings.TrimSpace(record[1]),
			Type:       domain.RelationshipType(strings.TrimSpace(record[2])),
			Attributes: attrs,
		})
	}
	return relationships, nil
}

func checkHeader(got, want []string) error {
	if len(got) < len(want) {
		return domain.Errorf(domain.CodeMissingField, "csv header must start with %s", strings.Join(want, ","))
	}
	for i, col := range want {
		if !strings.EqualFold(strings.TrimSpace(got[i]), col) {
			return domain.Errorf(domain.CodeMissingField, "csv header column %d must be %q, got %q", i+1, col, got[i])
		}
	}
	return nil
}

// ImportBatch validates the whole batch against a clone and commits it
// atomically. Any row error rejects the entire batch and leaves the live
// state untouched. Per-type scope writability is deliberately skipped here
// so a scoped project can be bootstrapped with its surrounding context;
// metamodel and structural rules still apply in full.
func (s *Service) ImportBatch(ctx context.Context, batch ImportBatch) (ImportSummary, []RowError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ImportSummary{}, nil, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}

	clone := s.repo.Clone()
	var rowErrors []RowError

	for _, el := range batch.Elements {
		if err := clone.AddObject(el.ID, el.Type, el.Attributes); err != nil {
			rowErrors = append(rowErrors, rowErrorFrom(el.Line, columnForElementError(err), err))
		}
	}
	for _, rel := range batch.Relationships {
		if err := clone.AddRelationship(rel.FromID, rel.ToID, rel.Type, rel.Attributes); err != nil {
			rowErrors = append(rowErrors, rowErrorFrom(rel.Line, columnForRelationshipError(err, rel, clone), err))
			continue
		}
		from, _ := clone.Object(rel.FromID)
		to, _ := clone.Object(rel.ToID)
		if err := policy.ValidateRelationshipForFramework(s.meta.Framework, rel.Type, from.Type, to.Type); err != nil {
			rowErrors = append(rowErrors, rowErrorFrom(rel.Line, "type", err))
		}
	}
	if len(rowErrors) == 0 {
		if err := s.checkStructuralInvariants(clone); err != nil {
			rowErrors = append(rowErrors, rowErrorFrom(0, "", err))
		}
	}
	if len(rowErrors) > 0 {
		s.logger.Warn("import batch rejected",
			zap.Int("elements", len(batch.Elements)),
			zap.Int("relationships", len(batch.Relationships)),
			zap.Int("row_errors", len(rowErrors)))
		return ImportSummary{}, rowErrors, domain.Errorf(domain.CodePolicyViolation,
			"import rejected: %d row errors", len(rowErrors))
	}

	s.pushUndo(repoState{repo: s.repo, invalidInserts: s.invalidInserts})
	s.redo = nil
	s.repo = clone
	s.revision++
	s.notifyLocked()
	s.evaluateGovernanceLocked()
	s.writeAudit(ctx, actorFromContext(ctx), "graph.import", "repository", s.meta.ProjectID,
		fmt.Sprintf("%d elements, %d relationships", len(batch.Elements), len(batch.Relationships)))
	s.logger.Info("import batch accepted",
		zap.Int("elements", len(batch.Elements)),
		zap.Int("relationships", len(batch.Relationships)))
	return ImportSummary{
		ElementCount:      len(batch.Elements),
		RelationshipCount: len(batch.Relationships),
	}, nil, nil
}

func rowErrorFrom(line int, column string, err error) RowError {
	return RowError{
		Line:    line,
		Code:    domain.CodeOf(err),
		Column:  column,
		Message: err.Error(),
	}
}

func columnForElementError(err error) string {
	switch domain.CodeOf(err) {
	case domain.CodeMissingField, domain.CodeDuplicateID:
		return "id"
	case domain.CodeInvalidType:
		return "type"
	}
	return ""
}

func columnForRelationshipError(err error, rel ImportRelationship, clone *repository.Repository) string {
	switch domain.CodeOf(err) {
	case domain.CodeInvalidType:
		return "type"
	case domain.CodeMissingField:
		if strings.TrimSpace(rel.FromID) == "" {
			return "fromId"
		}
		return "toId"
	case domain.CodeUnknownReference:
		if !clone.HasObject(rel.FromID) {
			return "fromId"
		}
		return "toId"
	case domain.CodeInvalidEndpoints:
		if _, ok := metamodel.RuleFor(rel.Type); ok {
			return "type"
		}
	}
	return ""
}
