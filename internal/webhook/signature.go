package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
)

// DefaultTolerance is the replay window applied when none is configured.
const DefaultTolerance = 300 * time.Second

// SignatureHeader is the parsed form of "t=<unix>,v1=<hex>[,v1=<hex>...]".
type SignatureHeader struct {
	Timestamp  int64
	Signatures []string
}

func ParseSignatureHeader(header string) (SignatureHeader, error) {
	var parsed SignatureHeader
	hasTimestamp := false

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return SignatureHeader{}, fmt.Errorf("%w: invalid timestamp %q", domain.ErrSignature, value)
			}
			parsed.Timestamp = ts
			hasTimestamp = true
		case "v1":
			if value != "" {
				parsed.Signatures = append(parsed.Signatures, strings.ToLower(value))
			}
		}
	}

	if !hasTimestamp {
		return SignatureHeader{}, fmt.Errorf("%w: timestamp is missing", domain.ErrSignature)
	}
	if len(parsed.Signatures) == 0 {
		return SignatureHeader{}, fmt.Errorf("%w: v1 signature is missing", domain.ErrSignature)
	}

	return parsed, nil
}

// ComputeSignature returns hex(hmac_sha256(secret, "<timestamp>.<body>")).
func ComputeSignature(rawBody []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureVerifier checks timestamped HMAC signatures. rawBody must be the
// bytes exactly as received.
type SignatureVerifier struct {
	tolerance time.Duration
	now       func() time.Time
}

func NewSignatureVerifier(tolerance time.Duration) *SignatureVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &SignatureVerifier{tolerance: tolerance, now: time.Now}
}

func (v *SignatureVerifier) Verify(rawBody []byte, header string, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: signing secret is empty", domain.ErrSignature)
	}
	if strings.TrimSpace(header) == "" {
		return fmt.Errorf("%w: signature header is missing", domain.ErrSignature)
	}

	parsed, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}
	if err := v.checkTimestamp(parsed.Timestamp); err != nil {
		return err
	}

	expected := []byte(ComputeSignature(rawBody, secret, parsed.Timestamp))
	for _, candidate := range parsed.Signatures {
		if hmac.Equal(expected, []byte(candidate)) {
			return nil
		}
	}

	return fmt.Errorf("%w: signature mismatch", domain.ErrSignature)
}

// VerifyMailgun checks Mailgun's body-embedded signature:
// hex(hmac_sha256(key, timestamp + token)).
func (v *SignatureVerifier) VerifyMailgun(sig MailgunSignature, signingKey string) error {
	if strings.TrimSpace(signingKey) == "" {
		return fmt.Errorf("%w: signing key is empty", domain.ErrSignature)
	}
	if sig.Timestamp == "" || sig.Token == "" || sig.Signature == "" {
		return fmt.Errorf("%w: signature block is incomplete", domain.ErrSignature)
	}

	ts, err := strconv.ParseInt(sig.Timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp %q", domain.ErrSignature, sig.Timestamp)
	}
	if err := v.checkTimestamp(ts); err != nil {
		return err
	}

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(sig.Timestamp))
	mac.Write([]byte(sig.Token))
	expected := []byte(hex.EncodeToString(mac.Sum(nil)))

	if !hmac.Equal(expected, []byte(strings.ToLower(sig.Signature))) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrSignature)
	}
	return nil
}

func (v *SignatureVerifier) checkTimestamp(ts int64) error {
	signedAt := time.Unix(ts, 0)
	skew := v.now().Sub(signedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance of %s", domain.ErrSignature, v.tolerance)
	}
	return nil
}
