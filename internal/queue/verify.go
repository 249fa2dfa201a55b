package queue

import (
	"crypto/md5" //nolint:gosec // delivery check against the queue service's own digest, not a security property
	"encoding/hex"
)

// VerifySent reports whether the MD5 digest of the canonical JSON body
// the caller intended to send matches the digest the queue service
// returned for the message it actually stored. A mismatch means the
// delivered bytes differ from what was intended and is unrecoverable.
func VerifySent(expectedBody string, sent SendResult) bool {
	sum := md5.Sum([]byte(expectedBody)) //nolint:gosec
	expected := hex.EncodeToString(sum[:])
	return expected == sent.MD5OfMessageBody
}
