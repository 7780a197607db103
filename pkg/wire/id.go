package wire

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ID is an entity or user identifier. Peers send ids either as JSON strings or
// as numbers; both decode to the same textual form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	r := gjson.ParseBytes(b)
	switch r.Type {
	case gjson.String, gjson.Number:
		*id = ID(r.String())
		return nil
	case gjson.Null:
		*id = ""
		return nil
	default:
		return fmt.Errorf("invalid id %s", string(b))
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}
