package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString prevents accidental logging or serialization of sensitive
// values (the IP-hash secret, API keys, the database URL). String() and
// MarshalJSON() return a redacted placeholder; call Unmask() where the raw
// value is genuinely needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Usage should be
// limited to constructing Authorization headers, connection strings, and
// hash keys.
func (s SecretString) Unmask() string {
	return string(s)
}
