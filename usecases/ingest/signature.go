package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxTimestampSkew bounds how stale a signed webhook may be. Anything outside
// the window is rejected as a replay.
const maxTimestampSkew = 10 * time.Minute

// VerifyProxySignature checks the Use60 proxy scheme: the signature header is
// "v1=<hex>" over HMAC-SHA256(secret, "v1:" + timestamp + ":" + rawBody).
func VerifyProxySignature(secret, timestamp, signature string, body []byte, now time.Time) error {
	if err := verifyTimestamp(timestamp, now); err != nil {
		return err
	}

	provided, ok := strings.CutPrefix(signature, "v1=")
	if !ok {
		return fmt.Errorf("%w: unsupported signature version", ErrUnauthorized)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v1:" + timestamp + ":"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return fmt.Errorf("%w: signature mismatch", ErrUnauthorized)
	}
	return nil
}

// VerifyJustCallSignature checks the provider's native scheme:
// HMAC-SHA256(secret, secret + "|" + urlencode(webhookURL) + "|" + eventType + "|" + timestamp)
// in hex, carried bare in the signature header.
func VerifyJustCallSignature(secret, webhookURL, eventType, timestamp, signature string, now time.Time) error {
	if err := verifyTimestamp(timestamp, now); err != nil {
		return err
	}

	base := secret + "|" + url.QueryEscape(webhookURL) + "|" + eventType + "|" + timestamp
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrUnauthorized)
	}
	return nil
}

func verifyTimestamp(timestamp string, now time.Time) error {
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrUnauthorized)
	}
	skew := now.Sub(time.Unix(seconds, 0))
	if skew > maxTimestampSkew || skew < -maxTimestampSkew {
		return fmt.Errorf("%w: timestamp outside replay window", ErrUnauthorized)
	}
	return nil
}
