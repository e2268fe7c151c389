package database

import (
	"database/sql/driver"
	"errors"
)

// Document is a custom column type for opaque JSON documents that works the
// same way across PostgreSQL, MySQL and SQLite: the raw JSON bytes are stored
// in a text column and round-tripped without interpretation.
type Document []byte

// Scan implements the sql.Scanner interface for reading from the database.
func (d *Document) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*d = append((*d)[0:0], v...)
		return nil
	case string:
		*d = Document(v)
		return nil
	default:
		return errors.New("Document: unsupported scan type")
	}
}

// Value implements the driver.Valuer interface for writing to the database.
func (d Document) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	return string(d), nil
}

// MarshalJSON returns d as the JSON encoding of d.
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON sets *d to a copy of data.
func (d *Document) UnmarshalJSON(data []byte) error {
	if d == nil {
		return errors.New("Document: UnmarshalJSON on nil pointer")
	}
	*d = append((*d)[0:0], data...)
	return nil
}

// GormDataType returns the GORM data type hint.
func (Document) GormDataType() string {
	return "text"
}
