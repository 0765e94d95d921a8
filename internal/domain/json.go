package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// IntSlice is a []int that round-trips through a jsonb column, used for the
// small typed JSON fields (selected context indices) that don't warrant a
// full gorm.io/datatypes.JSON payload.
type IntSlice []int

func (s IntSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal([]int(s))
}

func (s *IntSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("domain: unsupported Scan type %T for IntSlice", value)
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*s = out
	return nil
}
