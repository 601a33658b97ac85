package pipeline

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeUploadPayload normalizes a text-encoded upload payload into raw
// bytes. The accepted format is standard base64, optionally wrapped in a
// browser-style envelope:
//
//	data:<mime>;base64,<payload>
//
// The scheme prefix is stripped before decoding; the declared mime type
// is ignored, validation relies on the file name only. Binary frames
// bypass this function entirely and carry raw bytes.
func DecodeUploadPayload(payload string) ([]byte, error) {
	if idx := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && idx != -1 {
		payload = payload[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("upload payload is not valid base64: %w", err)
	}
	return data, nil
}

// FileExtension extracts the lowercased substring after the final dot.
// A name without a dot has no extension.
func FileExtension(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx == -1 || idx == len(fileName)-1 {
		return ""
	}
	return strings.ToLower(fileName[idx+1:])
}
