package credits

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"textlens/internal/types"
)

// IPHasher derives the guest ledger lookup key from a client IP using a
// keyed BLAKE2b-256 hash. The raw IP must never be used for matching; only
// the hash reaches the unique index, so a compromised store does not yield
// a directly queryable IP list. The key is a process-wide secret used for
// nothing else.
type IPHasher struct {
	key []byte
}

// NewIPHasher creates an IPHasher keyed with the given secret. Secrets
// longer than the BLAKE2b key limit are compressed down with an unkeyed
// hash first.
func NewIPHasher(secret types.SecretString) *IPHasher {
	key := []byte(secret.Unmask())
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &IPHasher{key: key}
}

// Hash returns the hex-encoded keyed hash of the IP address.
func (h *IPHasher) Hash(ip string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Key length is validated in the constructor; New256 cannot fail
		// for a key this size.
		panic(err)
	}
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}
