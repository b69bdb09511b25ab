// Package webhook receives inbound WhatsApp callbacks and enqueues them
// for the conversation worker, serialized per client number.
package webhook

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
)

// DecodeBody parses a Twilio form payload into a flat field map. The
// API Gateway proxy delivers the body base64-encoded; direct HTTP
// delivery does not.
func DecodeBody(body string, base64Encoded bool) (map[string]string, error) {
	raw := body
	if base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("webhook: failed to decode body: %w", err)
		}
		raw = string(decoded)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("webhook: failed to parse form body: %w", err)
	}
	return flatten(values), nil
}

func flatten(values url.Values) map[string]string {
	fields := make(map[string]string, len(values))
	for key := range values {
		fields[key] = values.Get(key)
	}
	return fields
}

// ValidateFields checks the minimum payload the conversation worker
// needs.
func ValidateFields(fields map[string]string) error {
	if fields["To"] == "" {
		return errors.New("webhook: missing To")
	}
	if fields["From"] == "" {
		return errors.New("webhook: missing From")
	}
	if fields["Body"] == "" {
		return errors.New("webhook: missing Body")
	}
	return nil
}
