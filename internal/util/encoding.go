package util

import (
	"encoding/base64"
	"strings"
)

// EncodeURLSafe encodes data as base64url with the trailing padding removed,
// which keeps the result valid inside a t.me start parameter.
func EncodeURLSafe(data []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(data), "=")
}

// DecodeURLSafe restores the padding stripped by EncodeURLSafe and decodes.
func DecodeURLSafe(s string) ([]byte, error) {
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.URLEncoding.DecodeString(s)
}
