package quota

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIP converts a client IP into the opaque identity used for quota
// accounting. The raw address is never stored; counters and session rows
// only ever see this hash.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
