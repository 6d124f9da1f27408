package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds how old a signed timestamp may be before the
// payload is rejected as a replay.
const DefaultTolerance = 5 * time.Minute

// Verify authenticates the raw body against the provider's signature header
// and, on success, decodes the trusted event envelope.
func Verify(raw []byte, signatureHeader, secret string) (*Event, error) {
	now := time.Now()
	if err := VerifySignature(raw, signatureHeader, secret, now, DefaultTolerance); err != nil {
		return nil, err
	}
	return parseEvent(raw, now)
}

// VerifySignature checks the `t=<unix>,v1=<hex>` signature header: an
// HMAC-SHA256 of "<t>.<raw body>" under the shared secret, with the signed
// timestamp inside the tolerance window. Any v1 candidate may match, since
// providers send multiple signatures during secret rotation.
func VerifySignature(payload []byte, signatureHeader, secret string, now time.Time, tolerance time.Duration) error {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || strings.TrimSpace(secret) == "" {
		return &VerificationError{Reason: "missing signature"}
	}

	timestamp, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return &VerificationError{Reason: "signed timestamp outside tolerance"}
	}

	signed := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		if hmac.Equal(expected, candidate) {
			return nil
		}
	}
	return &VerificationError{Reason: "signature mismatch"}
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var timestamp int64
	var candidates [][]byte

	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, &VerificationError{Reason: "malformed signature timestamp"}
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(v))
			if err != nil {
				return 0, nil, &VerificationError{Reason: "malformed signature"}
			}
			candidates = append(candidates, sig)
		}
	}

	if timestamp == 0 || len(candidates) == 0 {
		return 0, nil, &VerificationError{Reason: "malformed signature header"}
	}
	return timestamp, candidates, nil
}
