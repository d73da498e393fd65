package cfddns

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ManagedType is the only record type this package will change.
const ManagedType = "A"

// RecordFilter decides which registry records are managed.
//
// A record is managed when its type is ManagedType and,
// if Suffix is not blank, its name ends with Suffix.
// The suffix comparison is exact; names are not normalized.
type RecordFilter struct {
	Suffix string
}

// Filter returns the managed records in their original order.
func (f RecordFilter) Filter(records []Record) []Record {
	return lo.Filter(records, func(r Record, _ int) bool {
		return f.Exclusion(r) == ""
	})
}

// Exclusion explains why r is not managed, or returns "" if it is.
func (f RecordFilter) Exclusion(r Record) string {
	if r.Type != ManagedType {
		return fmt.Sprintf("type %s is not managed", r.Type)
	}
	if strings.TrimSpace(f.Suffix) != "" && !strings.HasSuffix(r.Name, f.Suffix) {
		return fmt.Sprintf("name does not end with %q", f.Suffix)
	}
	return ""
}
