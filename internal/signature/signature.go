// Package signature derives deterministic execution fingerprints.
//
// A fingerprint binds an execution's identity, inputs, and outputs into a
// single hex digest. It is a content hash, not a cryptographic signature:
// there is no key, and it proves nothing about who produced it. Downstream
// consumers depend on the fingerprint semantics — do not upgrade this to
// public-key signing.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sign computes the execution fingerprint. Identical arguments always yield
// the identical string; any differing argument (including the timestamp)
// yields a different one.
func Sign(executionID, promptID, version string, input map[string]any, output any, caller string, timestamp time.Time) (string, error) {
	inputHash, err := hashJSON(input)
	if err != nil {
		return "", fmt.Errorf("hash input: %w", err)
	}
	outputHash, err := hashJSON(output)
	if err != nil {
		return "", fmt.Errorf("hash output: %w", err)
	}

	payload := strings.Join([]string{
		executionID,
		promptID,
		version,
		inputHash,
		outputHash,
		caller,
		strconv.FormatInt(timestamp.UnixMilli(), 10),
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}

// hashJSON hashes the canonical JSON form of v. encoding/json serializes map
// keys in sorted order, which gives a stable byte stream for equal values.
func hashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
