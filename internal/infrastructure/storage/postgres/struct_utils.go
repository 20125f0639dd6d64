package postgres

import (
	"reflect"
	"sync"
)

// column maps a "db" tag to the field path inside a row struct. Embedded structs
// such as ledger.StockKey contribute their columns with a longer path.
type column struct {
	name  string
	index []int
}

var columnCache sync.Map // reflect.Type -> []column

func columnsOf(t reflect.Type) []column {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}
	cols := appendColumns(nil, t, nil)
	columnCache.Store(t, cols)
	return cols
}

func appendColumns(dst []column, t reflect.Type, prefix []int) []column {
	if t.Kind() != reflect.Struct {
		return dst
	}
	for i := range t.NumField() {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)
		if f.Anonymous {
			dst = appendColumns(dst, f.Type, path)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			dst = append(dst, column{name: tag, index: path})
		}
	}
	return dst
}

// ExtractDBColumns lists the "db" columns of T in field order, flattening embedded
// structs. Repositories call it once at construction for their SELECT lists.
func ExtractDBColumns[T any]() []string {
	cols := columnsOf(reflect.TypeFor[T]())
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

// StructToMap returns column -> value for a row struct, for squirrel SetMap inserts.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	cols := columnsOf(rv.Type())
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		out[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return out
}
