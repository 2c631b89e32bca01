package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONStringArray is a []string stored as a JSON text column. It implements
// sql.Scanner and driver.Valuer so GORM models and raw scans can use it
// directly.
type JSONStringArray []string

// Scan implements sql.Scanner. NULL and empty text scan to nil.
func (a *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("json string array: unsupported scan type %T", value)
	}

	if len(data) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(data, a)
}

// Value implements driver.Valuer. A nil array is stored as an empty JSON array
// so columns stay queryable with json functions.
func (a JSONStringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
