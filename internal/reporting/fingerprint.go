package reporting

import (
	"fmt"
	"strings"

	"github.com/minio/highwayhash"

	"github.com/xkilldash9x/tainttrace/api/schemas"
)

// fingerprintKey must stay constant, or every stored fingerprint changes.
var fingerprintKey = []byte("tainttrace-partial-fingerprints!")

// FingerprintVersion names the partialFingerprints entry written to SARIF.
const FingerprintVersion = "primaryLocationLineHash/v1"

// Fingerprint identifies a finding independently of its line number, so a
// result keeps its identity when code above it moves. It hashes the check,
// the file, the sink and the whitespace-normalized source line.
func Fingerprint(f schemas.Finding) (string, error) {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", err
	}
	line := strings.Join(strings.Fields(f.Snippet), " ")
	for _, part := range []string{string(f.Check), f.File, f.Sink, line} {
		if _, err := h.Write([]byte(part)); err != nil {
			return "", err
		}
		// Field separator so ("ab","c") and ("a","bc") differ.
		if _, err := h.Write([]byte{0}); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
