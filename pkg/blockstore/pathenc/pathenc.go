// Package pathenc maps opaque bucket and key bytes to filesystem-safe path
// components.
//
// The encoding is unpadded URL-safe base64: decodable, case-sensitive and
// free of characters the host filesystem treats specially. In particular it
// never produces a leading dot, so hidden partition files such as the
// version record can never collide with an encoded name. The alphabet being
// case-sensitive is load-bearing, partitions refuse to start on filesystems
// that fold case (see the backend startup probe).
package pathenc

import "encoding/base64"

// Encode returns the filesystem token for raw.
func Encode(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode is the inverse of Encode.
func Decode(token string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(token)
}

// Nest splits the first 2*depth characters of an encoded token into
// two-character directory components. When the token is too short to fill
// all components, the list is padded at the front with "0" entries so the
// result always has exactly depth elements:
//
//	Nest("abcdefg", 3) = ["ab", "cd", "ef"]
//	Nest("a", 3)       = ["0", "0", "a"]
func Nest(token string, depth int) []string {
	if depth <= 0 {
		return nil
	}

	limit := 2 * depth
	if len(token) < limit {
		limit = len(token)
	}

	comps := make([]string, 0, depth)
	for i := 0; i < limit; i += 2 {
		end := i + 2
		if end > limit {
			end = limit
		}
		comps = append(comps, token[i:end])
	}

	for len(comps) < depth {
		comps = append([]string{"0"}, comps...)
	}

	return comps
}
