package models

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"
)

/*
Schema Report Usage:

	poststudio schema-report

Compares every table backing a model with the model's gorm columns. Columns a
model declares but the table lacks are expected on older schema generations;
they are what capability detection reports as unavailable.

Example output:
=== SCHEMA REPORT ===
--- Table: posts ---
Missing in table (2):
  - live_title
  - published_version_id
Unknown to model (0)

--- Table: post_versions ---
Table does not exist
*/

// TableReport describes the drift between one model and its table.
type TableReport struct {
	Table          string
	Exists         bool
	MissingInDB    []string
	UnknownToModel []string
}

// reportedModels maps each table to the struct that reads it.
func reportedModels() []any {
	return []any{Workspace{}, Post{}, PostVersion{}}
}

// BuildSchemaReport inspects the live schema through gorm's migrator.
func BuildSchemaReport(db *gorm.DB) ([]TableReport, error) {
	var reports []TableReport
	migrator := db.Migrator()

	for _, model := range reportedModels() {
		table := tableNameOf(model)
		report := TableReport{Table: table}

		if !migrator.HasTable(table) {
			reports = append(reports, report)
			continue
		}
		report.Exists = true

		columnTypes, err := migrator.ColumnTypes(table)
		if err != nil {
			return nil, fmt.Errorf("read columns of %s: %w", table, err)
		}
		dbColumns := make([]string, 0, len(columnTypes))
		for _, ct := range columnTypes {
			dbColumns = append(dbColumns, ct.Name())
		}

		modelColumns := getModelColumns(model)
		report.MissingInDB = difference(modelColumns, dbColumns)
		report.UnknownToModel = difference(dbColumns, modelColumns)
		reports = append(reports, report)
	}

	return reports, nil
}

// WriteSchemaReport renders reports in the same plain format the CLI prints.
func WriteSchemaReport(w io.Writer, reports []TableReport) {
	fmt.Fprintln(w, "=== SCHEMA REPORT ===")
	for _, r := range reports {
		fmt.Fprintf(w, "--- Table: %s ---\n", r.Table)
		if !r.Exists {
			fmt.Fprintln(w, "Table does not exist")
			fmt.Fprintln(w)
			continue
		}
		writeColumnList(w, "Missing in table", r.MissingInDB)
		writeColumnList(w, "Unknown to model", r.UnknownToModel)
		fmt.Fprintln(w)
	}
}

func writeColumnList(w io.Writer, label string, columns []string) {
	fmt.Fprintf(w, "%s (%d)\n", label, len(columns))
	for _, c := range columns {
		fmt.Fprintf(w, "  - %s\n", c)
	}
}

func tableNameOf(model any) string {
	if t, ok := model.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return strings.ToLower(reflect.TypeOf(model).Name())
}

// getModelColumns extracts column names from the gorm tags of a struct.
func getModelColumns(model any) []string {
	var columns []string
	t := reflect.TypeOf(model)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			continue
		}
		if name := extractColumnNameFromGormTag(field.Tag.Get("gorm")); name != "" {
			columns = append(columns, name)
		}
	}
	return columns
}

func extractColumnNameFromGormTag(gormTag string) string {
	for _, part := range strings.Split(gormTag, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "column:") {
			return strings.TrimPrefix(part, "column:")
		}
	}
	return ""
}

// difference returns the members of a that are not in b, sorted.
func difference(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, v := range b {
		seen[v] = true
	}
	out := []string{}
	for _, v := range a {
		if !seen[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
