package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ErrInvalidPatch is returned when an update body is not a JSON merge patch
// that decodes onto the stored record
var ErrInvalidPatch = errors.New("invalid merge patch")

// mergePatch applies an RFC 7396 merge patch to current and decodes the
// result into a new value. A key set to null is removed from the document,
// which clears the matching nullable field.
func mergePatch[T any](current *T, patch []byte) (*T, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(patch), []byte("{")) {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPatch)
	}

	original, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stored record: %w", err)
	}

	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return &out, nil
}
