package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fastjson"

	"github.com/V4T54L/logstore/internal/domain"
)

// Validation reasons surfaced verbatim to callers.
const (
	reasonNotAnObject    = "Request body must be a JSON object"
	reasonMissingSev     = "Missing required field: severity"
	reasonMissingMessage = "Missing required field: message"
	reasonMessageNotText = "Message must be a string"
	reasonMessageEmpty   = "Message cannot be empty"
	reasonMessageNotUTF8 = "Message must be valid UTF-8 text"
)

var payloadParsers fastjson.ParserPool

// IngestRequest is a validated, strongly typed ingest payload.
type IngestRequest struct {
	Severity domain.Severity
	Message  string
}

// ParseIngestRequest turns an untyped payload into an IngestRequest or a
// *domain.ValidationError. Checks run in a fixed order and the first failure
// wins. Fields other than severity and message are ignored, including any
// caller-supplied id, occurredAt or group. A maxMessageLength of zero or less
// disables the length cap.
func ParseIngestRequest(payload []byte, maxMessageLength int) (IngestRequest, error) {
	p := payloadParsers.Get()
	defer payloadParsers.Put(p)

	v, err := p.ParseBytes(payload)
	if err != nil || v.Type() != fastjson.TypeObject {
		return IngestRequest{}, invalid(reasonNotAnObject)
	}

	sevVal := v.Get("severity")
	if isAbsent(sevVal) {
		return IngestRequest{}, invalid(reasonMissingSev)
	}
	sev, ok := parseSeverityValue(sevVal)
	if !ok {
		return IngestRequest{}, invalid("Invalid severity. Must be one of: " + domain.SeverityList())
	}

	msgVal := v.Get("message")
	if isAbsent(msgVal) {
		return IngestRequest{}, invalid(reasonMissingMessage)
	}
	if msgVal.Type() != fastjson.TypeString {
		return IngestRequest{}, invalid(reasonMessageNotText)
	}
	raw, err := msgVal.StringBytes()
	if err != nil {
		return IngestRequest{}, invalid(reasonMessageNotText)
	}
	// The parser owns raw until it goes back to the pool.
	message := string(raw)
	if !domain.IsStorableText(message) {
		return IngestRequest{}, invalid(reasonMessageNotUTF8)
	}
	if strings.TrimSpace(message) == "" {
		return IngestRequest{}, invalid(reasonMessageEmpty)
	}
	if maxMessageLength > 0 && utf8.RuneCountInString(message) > maxMessageLength {
		return IngestRequest{}, invalid(fmt.Sprintf("Message exceeds maximum length of %d characters", maxMessageLength))
	}

	return IngestRequest{Severity: sev, Message: message}, nil
}

func isAbsent(v *fastjson.Value) bool {
	return v == nil || v.Type() == fastjson.TypeNull
}

func parseSeverityValue(v *fastjson.Value) (domain.Severity, bool) {
	if v.Type() != fastjson.TypeString {
		return "", false
	}
	b, err := v.StringBytes()
	if err != nil {
		return "", false
	}
	return domain.ParseSeverity(string(b))
}

func invalid(reason string) error {
	return &domain.ValidationError{Reason: reason}
}
