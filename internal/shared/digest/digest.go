// Package digest computes the content digests reported for loaded objects.
package digest

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bytedance/sonic"
)

// Prefix tags every digest with its algorithm.
const Prefix = "sha256:"

// Bytes returns the tagged digest of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:])
}

// JSON returns the tagged digest of v's JSON encoding. Map keys are sorted,
// so equal values digest equally.
func JSON(v any) (string, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", err
	}
	return Bytes(data), nil
}
