package report

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Scanning the code on a printed report yields the digest in a form that can
// be matched against manifest.json directly.
const digestPayloadPrefix = "canconv-manifest-sha256:"

// DigestQR renders the manifest digest as a QR code PNG. The digest must be
// the full hex form produced by the manifest builder.
func DigestQR(digest string, size int) ([]byte, error) {
	norm := strings.ToLower(strings.TrimSpace(digest))
	if norm == "" {
		return nil, errors.New("manifest digest is empty")
	}
	if len(norm) != sha256.Size*2 {
		return nil, fmt.Errorf("manifest digest: want %d hex characters, got %d", sha256.Size*2, len(norm))
	}
	if _, err := hex.DecodeString(norm); err != nil {
		return nil, fmt.Errorf("manifest digest: %w", err)
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode(digestPayloadPrefix+norm, qrcode.Medium, size)
}
