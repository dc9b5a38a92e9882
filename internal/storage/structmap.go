package storage

import (
	"fmt"
	"reflect"
	"sync"
)

// ExtractDBColumns extracts all column names from struct "db" tags.
// It handles embedded structs recursively. Called once per type at
// configuration time, so reflection overhead is acceptable.
func ExtractDBColumns[T any]() []string {
	var zero T
	t := reflect.TypeOf(zero)
	return extractColumnsFromType(t)
}

func extractColumnsFromType(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			cols = append(cols, extractColumnsFromType(field.Type)...)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}

		cols = append(cols, tag)
	}

	return cols
}

// fieldInfo contains pre-computed metadata about a struct field.
type fieldInfo struct {
	index int
	dbTag string
}

// typeMetadata contains cached reflection metadata for a type.
type typeMetadata struct {
	fields          []fieldInfo
	embeddedIndices []int
}

// typeCache holds metadata per type (thread-safe); reflection runs once per
// type, later calls reuse cached data.
var typeCache sync.Map // map[reflect.Type]*typeMetadata

func metadataFor(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}

	if t.Kind() != reflect.Struct {
		typeCache.Store(t, meta)
		return meta
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			meta.embeddedIndices = append(meta.embeddedIndices, i)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}

		meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
	}

	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct to a column map using "db" tags.
// Only fields with a "db" tag are included; embedded structs are flattened.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metadataFor(rv.Type())

	res := make(map[string]any, len(meta.fields))

	for _, fi := range meta.fields {
		res[fi.dbTag] = rv.Field(fi.index).Interface()
	}

	for _, embIdx := range meta.embeddedIndices {
		for k, v := range StructToMap(rv.Field(embIdx).Interface()) {
			res[k] = v
		}
	}

	return res
}

// ScanRowMap fills a struct from a column map, the inverse of StructToMap.
// dest must be a non-nil pointer to a struct. Columns absent from the map
// leave the corresponding field at its zero value.
func ScanRowMap(dest any, row map[string]any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan destination must be a non-nil pointer, got %T", dest)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("scan destination must point to a struct, got %T", dest)
	}
	return fillStruct(rv, row)
}

func fillStruct(rv reflect.Value, row map[string]any) error {
	meta := metadataFor(rv.Type())

	for _, fi := range meta.fields {
		val, ok := row[fi.dbTag]
		if !ok || val == nil {
			continue
		}

		field := rv.Field(fi.index)
		vv := reflect.ValueOf(val)

		switch {
		case vv.Type().AssignableTo(field.Type()):
			field.Set(vv)
		case vv.Type().ConvertibleTo(field.Type()):
			field.Set(vv.Convert(field.Type()))
		default:
			return fmt.Errorf("cannot scan column %q: %s is not assignable to %s",
				fi.dbTag, vv.Type(), field.Type())
		}
	}

	for _, embIdx := range meta.embeddedIndices {
		emb := rv.Field(embIdx)
		if emb.Kind() == reflect.Ptr {
			if emb.IsNil() {
				emb.Set(reflect.New(emb.Type().Elem()))
			}
			emb = emb.Elem()
		}
		if emb.Kind() != reflect.Struct {
			continue
		}
		if err := fillStruct(emb, row); err != nil {
			return err
		}
	}

	return nil
}

// ScanRowMaps fills a slice of structs from column maps. dest must be a
// pointer to a slice whose element type is a struct or a pointer to one.
func ScanRowMaps(dest any, rows []map[string]any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan destination must be a non-nil pointer, got %T", dest)
	}
	slice := rv.Elem()
	if slice.Kind() != reflect.Slice {
		return fmt.Errorf("scan destination must point to a slice, got %T", dest)
	}

	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	structType := elemType
	if isPtr {
		structType = elemType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("slice element must be a struct or struct pointer, got %s", elemType)
	}

	out := reflect.MakeSlice(slice.Type(), 0, len(rows))
	for _, row := range rows {
		elem := reflect.New(structType)
		if err := fillStruct(elem.Elem(), row); err != nil {
			return err
		}
		if isPtr {
			out = reflect.Append(out, elem)
		} else {
			out = reflect.Append(out, elem.Elem())
		}
	}

	slice.Set(out)
	return nil
}
