package config

import "encoding/json"

// redactedPlaceholder is substituted for every SecureString value whenever
// it is formatted or marshaled.
const redactedPlaceholder = "[REDACTED]"

// SecureString wraps a secret so that fmt, %v/%#v formatting and JSON
// marshaling all redact it; only explicit string(s) access recovers the
// real value.
type SecureString string

func (SecureString) String() string   { return redactedPlaceholder }
func (SecureString) GoString() string { return redactedPlaceholder }

func (SecureString) MarshalJSON() ([]byte, error) {
	return json.Marshal(redactedPlaceholder)
}

func (s *SecureString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SecureString(raw)
	return nil
}
