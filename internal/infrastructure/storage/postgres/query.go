package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/domain"
)

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// SelectPage counts the rows of q, then loads one ordered page of them.
func SelectPage[T any](ctx context.Context, querier Querier, q squirrel.SelectBuilder, page domain.Page, orderBy ...string) ([]T, int64, error) {
	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	q = q.OrderBy(orderBy...)
	if page.Limit > 0 {
		q = q.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		q = q.Offset(uint64(page.Offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	var items []T
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("select: %w", err)
	}
	return items, total, nil
}

// GetOne runs q and scans a single row into dst. It returns found=false when no row matches.
func GetOne(ctx context.Context, querier Querier, dst any, q squirrel.Sqlizer) (bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, querier, dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Insert writes item into table using its "db" tags restricted to columns.
func Insert(ctx context.Context, querier Querier, table string, columns []string, item any) error {
	data := StructToMap(item)
	values := make(map[string]any, len(columns))
	for _, c := range columns {
		if v, ok := data[c]; ok {
			values[c] = v
		}
	}
	sql, args, err := Builder().Insert(table).SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// EqOptional adds column = *v when v is set.
func EqOptional[T any](q squirrel.SelectBuilder, column string, v *T) squirrel.SelectBuilder {
	if v == nil {
		return q
	}
	return q.Where(squirrel.Eq{column: *v})
}
