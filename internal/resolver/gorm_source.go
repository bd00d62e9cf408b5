package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// GormSource serves one physical table through a logical column allowlist.
// The allowlist maps logical column names to database columns, so callers
// never inject raw identifiers into SQL.
type GormSource struct {
	db      *gorm.DB
	table   string
	columns map[string]string
}

func NewGormSource(db *gorm.DB, table string, columns map[string]string) *GormSource {
	copied := make(map[string]string, len(columns))
	for logical, physical := range columns {
		copied[logical] = physical
	}

	return &GormSource{
		db:      db,
		table:   table,
		columns: copied,
	}
}

func (s *GormSource) Lookup(ctx context.Context, column string, filters map[string]string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("gorm source is not initialized")
	}

	dbColumn, ok := s.columns[column]
	if !ok {
		return "", false, nil
	}

	query := s.db.WithContext(ctx).Table(s.table).Select(dbColumn)
	for logical, value := range filters {
		filterColumn, known := s.columns[logical]
		if !known {
			// An unmappable predicate can never match a record.
			return "", false, nil
		}
		query = query.Where(fmt.Sprintf("%s = ?", filterColumn), value)
	}

	var rows []map[string]any
	if err := query.Limit(1).Find(&rows).Error; err != nil {
		if isMissingSchemaObject(err) {
			// Sources live in the surrounding platform schema and may not
			// be provisioned in every deployment; treat an absent table or
			// column as a miss so bindings fall back to their defaults.
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query source %s: %w", s.table, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}

	value, present := rows[0][dbColumn]
	if !present || value == nil {
		return "", false, nil
	}

	return formatValue(value), true, nil
}

// Postgres error codes for an undefined table and an undefined column.
const (
	pgCodeUndefinedTable  = "42P01"
	pgCodeUndefinedColumn = "42703"
)

func isMissingSchemaObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgCodeUndefinedTable || pgErr.Code == pgCodeUndefinedColumn
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
