package connectjson

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bufbuild/connect-go"
)

// Codec encodes RankFiles messages as JSON for Connect handlers. Decoding is
// strict: unknown fields and trailing data are rejected, matching the plain
// JSON endpoint.
type Codec struct{}

func (Codec) Name() string {
	return "json"
}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		// Connect sends an empty body for a zero-value message.
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON message")
	}
	return nil
}

var _ connect.Codec = (*Codec)(nil)
