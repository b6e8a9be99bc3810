package document

import (
	"github.com/tidwall/gjson"
)

// Attributes is the raw attributes member of a resource. Values stay in
// wire form; typed access goes through the path accessors, which take
// gjson paths ("title", "author.name", "tags.0").
type Attributes []byte

// UnmarshalJSON keeps the raw bytes.
func (a *Attributes) UnmarshalJSON(b []byte) error {
	*a = append((*a)[0:0], b...)
	return nil
}

// MarshalJSON writes the raw bytes back out.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte("null"), nil
	}
	return a, nil
}

// Get returns the raw result at path. Check result.Exists() when the path
// may be absent.
func (a Attributes) Get(path string) gjson.Result {
	return gjson.GetBytes(a, path)
}

// Has reports whether path exists in the attributes.
func (a Attributes) Has(path string) bool {
	return a.Get(path).Exists()
}

// GetString returns the string value at path, or "" when absent.
// Non-string scalars are rendered to their string form.
func (a Attributes) GetString(path string) string {
	return a.Get(path).String()
}

// GetInt returns the integer value at path, or 0 when absent.
func (a Attributes) GetInt(path string) int64 {
	return a.Get(path).Int()
}

// GetFloat returns the float value at path, or 0 when absent.
func (a Attributes) GetFloat(path string) float64 {
	return a.Get(path).Float()
}

// GetBool returns the boolean value at path, or false when absent.
func (a Attributes) GetBool(path string) bool {
	return a.Get(path).Bool()
}
