package postgres

import (
	"reflect"
	"slices"
	"sync"
)

// columnInfo maps one struct field to its column.
type columnInfo struct {
	index []int
	name  string
}

// columnCache holds the db-tag layout of every type seen so far.
var columnCache sync.Map // map[reflect.Type][]columnInfo

// columnsOf returns the db-tagged fields of t, descending into embedded
// structs. Computed once per type.
func columnsOf(t reflect.Type) []columnInfo {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]columnInfo)
	}

	var cols []columnInfo
	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			if f.Anonymous || !f.IsExported() {
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			cols = append(cols, columnInfo{index: f.Index, name: tag})
		}
	}
	columnCache.Store(t, cols)
	return cols
}

// ExtractDBColumns lists the column names of T in field order.
//
//	columns := ExtractDBColumns[product.Product]()
//	// ["id", "sku", "name", ...]
func ExtractDBColumns[T any]() []string {
	cols := columnsOf(reflect.TypeFor[T]())
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap converts a struct to a column map using "db" tags. Columns
// listed in skip are left out.
func StructToMap(v any, skip ...string) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	cols := columnsOf(rv.Type())
	res := make(map[string]any, len(cols))
	for _, c := range cols {
		if slices.Contains(skip, c.name) {
			continue
		}
		res[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return res
}
