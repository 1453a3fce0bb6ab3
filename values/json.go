package values

import "encoding/json"

// JSON is the passthrough payload for values without a registered structural
// codec. The bridge transfers it as text and never inspects the contents.
type JSON string

// EncodeJSON wraps an arbitrary host value as a JSON payload.
func EncodeJSON(v any) (JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return JSON(b), nil
}

// Decode unmarshals the payload into v.
func (j JSON) Decode(v any) error {
	return json.Unmarshal([]byte(j), v)
}

// String returns the raw JSON text.
func (j JSON) String() string {
	return string(j)
}
