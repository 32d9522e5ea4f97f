package units

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ParseBody decodes an identify response body: a top-level JSON array of
// unit objects.
func ParseBody(body []byte) ([]Unit, error) {
	var out []Unit
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding unit array: %w", err)
	}
	return out, nil
}

// ParseAssociated decodes the anchor form of an identify response: a JSON
// array of anchor objects (meetinghouses) each carrying an `associated`
// sub-array of units. Anchors without the field contribute nothing.
func ParseAssociated(body []byte) ([]Unit, error) {
	flat := gjson.GetBytes(body, "#.associated|@flatten")
	if !flat.Exists() || flat.Raw == "" {
		return nil, nil
	}
	var out []Unit
	if err := json.Unmarshal([]byte(flat.Raw), &out); err != nil {
		return nil, fmt.Errorf("decoding associated units: %w", err)
	}
	return out, nil
}
