// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
)

const (
	// AccessKeyPrefix starts every gateway access key.
	AccessKeyPrefix = "ELITEA"

	// AccessKeyLength is the fixed total length of an access key:
	// 6-char prefix + 6-digit project id + 8-char random suffix.
	AccessKeyLength = 20

	projectIDDigits = 6

	secretLength   = 40
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateAccessKeyID creates a new access key embedding the project id.
func GenerateAccessKeyID(projectID int64) (string, error) {
	if projectID < 0 || projectID > 999999 {
		return "", fmt.Errorf("project id %d out of range for access key encoding", projectID)
	}
	suffixLen := AccessKeyLength - len(AccessKeyPrefix) - projectIDDigits
	suffix, err := randomString(suffixLen, suffixAlphabet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%0*d%s", AccessKeyPrefix, projectIDDigits, projectID, suffix), nil
}

// GenerateSecret creates a new 40-character secret access key.
func GenerateSecret() (string, error) {
	return randomString(secretLength, secretAlphabet)
}

// DecodeProjectID extracts the project id from an access key. It rejects
// keys with the wrong length or prefix before any lookup happens, so
// garbage keys never reach the registry. The prefix match is
// case-insensitive.
func DecodeProjectID(accessKeyID string) (int64, error) {
	if len(accessKeyID) != AccessKeyLength {
		return 0, fmt.Errorf("access key must be %d characters", AccessKeyLength)
	}
	if !strings.EqualFold(accessKeyID[:len(AccessKeyPrefix)], AccessKeyPrefix) {
		return 0, fmt.Errorf("access key has unrecognized prefix")
	}
	digits := accessKeyID[len(AccessKeyPrefix) : len(AccessKeyPrefix)+projectIDDigits]
	projectID, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("access key has malformed project id: %w", err)
	}
	return projectID, nil
}

func randomString(n int, alphabet string) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
