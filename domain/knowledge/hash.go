package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// computePropertiesHash produces the canonical idempotency fingerprint of a
// property map. The value tree is round-tripped through encoding/json so map
// key order and numeric representation cannot produce false conflicts:
// json.Marshal emits map keys sorted at every nesting level, and the
// round-trip collapses int/float encodings of the same number.
func computePropertiesHash(properties map[string]any) string {
	if properties == nil {
		properties = make(map[string]any)
	}

	data, err := json.Marshal(properties)
	if err != nil {
		// Property maps come from decoded JSON; a marshal failure means a
		// non-JSON value sneaked in. Hash the error representation so the
		// write still gets a stable fingerprint.
		data = []byte(err.Error())
	}

	var normalized any
	if err := json.Unmarshal(data, &normalized); err == nil {
		if canon, err := json.Marshal(normalized); err == nil {
			data = canon
		}
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
