package models

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gen"
	"gorm.io/gorm"
)

/*
Model generation and column report usage:

GENERATE_MODELS=true writes type safe query helpers for the diary models to
./generated and then prints the column report.

GENERATE_COLUMN_REPORT=true only prints the report: for every table, the
database columns that no model field maps to through its db tag.

Example output:
=== COLUMN MISMATCH REPORT ===
--- Table: diary_entries ---
Found 1 columns not accounted for in model:
  - legacy_slug
*/

// tableModels maps each table to the model stored in it.
var tableModels = map[string]interface{}{
	"users":         User{},
	"tags":          Tag{},
	"diary_entries": DiaryEntry{},
	"access_logs":   AccessLog{},
}

// GenerateModels writes the gorm/gen query code for the diary models. The
// schema itself is owned by the SQL migrations, so nothing is migrated here.
func GenerateModels(db *gorm.DB, outPath string) error {
	if err := db.Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	if outPath == "" {
		outPath = "./generated"
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:           outPath,
		Mode:              gen.WithDefaultQuery | gen.WithQueryInterface,
		FieldNullable:     true,
		FieldCoverable:    true,
		FieldWithIndexTag: true,
		FieldWithTypeTag:  true,
	})
	g.UseDB(db)
	g.ApplyBasic(User{}, Tag{}, DiaryEntry{}, AccessLog{})

	log.Info().Str("outPath", outPath).Msg("Generating query helpers")
	g.Execute()

	GenerateColumnMismatchReport(db)
	return nil
}

// GenerateColumnMismatchReport prints the database columns that aren't accounted for in Go models
func GenerateColumnMismatchReport(db *gorm.DB) int {
	fmt.Println("=== COLUMN MISMATCH REPORT ===")

	totalMismatches := 0
	for tableName, model := range tableModels {
		fmt.Printf("\n--- Table: %s ---\n", tableName)

		dbColumns, err := getTableColumns(db, tableName)
		if err != nil {
			fmt.Printf("Skipping table %s: %v\n", tableName, err)
			continue
		}

		mismatches := findColumnMismatches(dbColumns, getModelFields(model))
		if len(mismatches) == 0 {
			fmt.Println("All columns are accounted for in the model.")
			continue
		}

		fmt.Printf("Found %d columns not accounted for in model:\n", len(mismatches))
		for _, col := range mismatches {
			fmt.Printf("  - %s\n", col)
		}
		totalMismatches += len(mismatches)
	}

	fmt.Printf("\n=== SUMMARY ===\n")
	fmt.Printf("Total mismatched columns across all tables: %d\n", totalMismatches)
	return totalMismatches
}

// getTableColumns lists the columns of tableName through the gorm migrator,
// which works for both postgres and sqlite.
func getTableColumns(db *gorm.DB, tableName string) ([]string, error) {
	if !db.Migrator().HasTable(tableName) {
		return nil, fmt.Errorf("table %s does not exist", tableName)
	}
	types, err := db.Migrator().ColumnTypes(tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	columns := make([]string, 0, len(types))
	for _, ct := range types {
		columns = append(columns, ct.Name())
	}
	return columns, nil
}

// getModelFields returns the column names a model declares in its db tags.
// Relation fields carry no db tag and are skipped.
func getModelFields(model interface{}) []string {
	var fields []string
	t := reflect.TypeOf(model)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			continue
		}
		if name, _, _ := strings.Cut(field.Tag.Get("db"), ","); name != "" && name != "-" {
			fields = append(fields, name)
		}
	}
	return fields
}

// findColumnMismatches finds columns that exist in the database but not in the model
func findColumnMismatches(dbColumns, modelFields []string) []string {
	modelFieldSet := make(map[string]bool, len(modelFields))
	for _, field := range modelFields {
		modelFieldSet[field] = true
	}

	var mismatches []string
	for _, col := range dbColumns {
		if !modelFieldSet[col] {
			mismatches = append(mismatches, col)
		}
	}
	return mismatches
}
