package exporter

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/parquet-go/parquet-go"

	"tourismcli/internal/schema"
	"tourismcli/pkg/contracts/domain"
)

// parquetRowType builds a row struct with one column per registry field, in
// registry order. Float columns are optional so nulls survive; the rest are
// required.
func parquetRowType(fields []schema.FieldSpec) reflect.Type {
	columns := make([]reflect.StructField, len(fields))
	for i, f := range fields {
		tag := f.Name
		if f.Type == schema.TypeFloat {
			tag += ",optional"
		}
		columns[i] = reflect.StructField{
			Name: exportedName(f.Name),
			Type: parquetGoType(f.Type),
			Tag:  reflect.StructTag(fmt.Sprintf("parquet:%q", tag)),
		}
	}
	return reflect.StructOf(columns)
}

func parquetGoType(t schema.FieldType) reflect.Type {
	switch t {
	case schema.TypeFloat:
		return reflect.TypeOf((*float64)(nil))
	case schema.TypeBool:
		return reflect.TypeOf(false)
	}
	return reflect.TypeOf("")
}

// exportedName turns snake_case field names into Go identifiers
func exportedName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// WriteParquet writes the records as a snappy-compressed Parquet file whose
// columns follow fields
func WriteParquet(path string, fields []schema.FieldSpec, records []domain.CanonicalRecord) error {
	rowType := parquetRowType(fields)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	pw := parquet.NewWriter(file,
		parquet.SchemaOf(reflect.New(rowType).Elem().Interface()),
		parquet.Compression(&parquet.Snappy),
	)

	row := reflect.New(rowType).Elem()
	for i, rec := range records {
		for j, f := range fields {
			col := row.Field(j)
			v, ok := rec.Value(f.Name)
			if !ok || v == nil {
				col.SetZero()
				continue
			}
			rv := reflect.ValueOf(v)
			if !rv.Type().AssignableTo(col.Type()) {
				return fmt.Errorf("field %s: %T does not fit a %s column", f.Name, v, f.Type)
			}
			col.Set(rv)
		}
		if err := pw.Write(row.Interface()); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return file.Close()
}
