package bag

import (
	_ "embed"
	"strings"

	"github.com/gocarina/gocsv"
)

// FieldType describes one named key or counter field: its storage width in
// octets and a human-readable label, loaded from an embedded CSV asset the
// same way a disk-geometry registry would be, applied here to Bag
// key/counter field names.
type FieldType struct {
	Name   string `csv:"name"`
	Octets int    `csv:"octets"`
	Kind   string `csv:"kind"` // "key" or "counter"
}

//go:embed fieldtypes.csv
var fieldTypesCSV string

var fieldTypeRegistry map[string]FieldType

func init() {
	var rows []FieldType
	if err := gocsv.UnmarshalString(fieldTypesCSV, &rows); err != nil {
		panic(err)
	}
	fieldTypeRegistry = make(map[string]FieldType, len(rows))
	for _, r := range rows {
		fieldTypeRegistry[strings.ToLower(r.Name)] = r
	}
}

// LookupFieldType returns the registered width/kind for a named key or
// counter type (e.g. "sipv4", "packets"), or false if unknown.
func LookupFieldType(name string) (FieldType, bool) {
	ft, ok := fieldTypeRegistry[strings.ToLower(name)]
	return ft, ok
}
