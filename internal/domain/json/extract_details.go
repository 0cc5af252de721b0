package json

import (
	"encoding/json"
	"io"
)

// BodyExtractor deserializes webhook request bodies.
type BodyExtractor struct {
}

func (b *BodyExtractor) DeserializeJson(body io.Reader, result any) error {
	bodyBytes, err := io.ReadAll(body)

	if err != nil {
		return err
	}

	err = json.Unmarshal(bodyBytes, result)

	if err != nil {
		return err
	}

	return nil
}
