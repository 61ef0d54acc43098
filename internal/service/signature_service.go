package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secretKey.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secretKey string, payload []byte) string {
	return hex.EncodeToString(s.mac(secretKey, payload))
}

// Verify checks signature against HMAC-SHA256(secretKey, payload) in
// constant time. Hex case and a "sha256=" prefix are accepted.
func (s *HMACSignatureService) Verify(secretKey string, payload []byte, signature string) bool {
	if secretKey == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(s.mac(secretKey, payload), given)
}

func (s *HMACSignatureService) mac(secretKey string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(payload)
	return mac.Sum(nil)
}
