// Package payload renders the invocation document the compute function
// receives for a schedule. Everything here is pure: the same schedule always
// yields byte-identical output.
package payload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"lottodispatch/internal/types"
)

// digestLen is the number of hex characters kept from the SHA-256 digest.
const digestLen = 12

// Build maps a schedule onto its payload. Games keep their authored order and
// excludeTypes is carried only when non-empty.
func Build(s types.Schedule) types.Payload {
	p := types.Payload{
		Games:    make([]types.GameSpec, len(s.Games)),
		SendMail: s.SendMail,
	}
	copy(p.Games, s.Games)

	if len(s.ExcludeTypes) > 0 {
		p.ExcludeTypes = make([]types.LotteryType, len(s.ExcludeTypes))
		copy(p.ExcludeTypes, s.ExcludeTypes)
	}
	return p
}

// Encode serializes a payload as compact JSON without HTML escaping.
func Encode(p types.Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalEncoding, "failed to encode payload", err)
	}
	// Encoder appends a newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Render builds and encodes the payload for s.
func Render(s types.Schedule) ([]byte, error) {
	return Encode(Build(s))
}

// Digest returns a short fingerprint of an encoded payload. It is logged with
// every firing so that a change in the rendered bytes is visible.
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])[:digestLen]
}
