package clientpipeline

import "errors"

// ErrPlaintextLeak is returned when StripPlaintextMetadata is enabled and a
// text field survives into the payload that is about to be transmitted.
// The check is fail-closed: callers must treat it as a hard abort, never
// as a field to silently drop at send time.
var ErrPlaintextLeak = errors.New("clientpipeline: metadata contains a text field and strip_plaintext_metadata is set")

// sanitizeMetadata returns a copy of metadata with the "text" key removed
// when strip is true, followed by a defensive check that no "text" key
// survived in the returned copy. Only the exact key "text" is removed and
// checked; metadata that never passes through this function is not
// checked at all.
func sanitizeMetadata(metadata map[string]any, strip bool) (map[string]any, error) {
	if metadata == nil {
		return nil, nil
	}

	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}

	if strip {
		delete(out, "text")
	}

	if _, leaked := out["text"]; leaked && strip {
		return nil, ErrPlaintextLeak
	}

	return out, nil
}
