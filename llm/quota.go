package llm

import (
	"strconv"
	"strings"
)

// IsQuotaExceeded reports whether err is the kind of provider failure that
// means the account/key is out of budget rather than a transient or input
// problem: an HTTP 429 that survived doPost's retry-with-backoff, or a 402
// (payment required) some providers return for the same condition. The
// error text comes from the "LLM API error %d: %s" format openai_compat.go
// builds once retries are exhausted.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	idx := strings.Index(msg, "LLM API error ")
	if idx == -1 {
		return strings.Contains(strings.ToLower(msg), "quota") ||
			strings.Contains(strings.ToLower(msg), "insufficient_quota")
	}
	rest := msg[idx+len("LLM API error "):]
	end := strings.IndexByte(rest, ':')
	if end == -1 {
		end = len(rest)
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if convErr != nil {
		return false
	}
	return code == 429 || code == 402
}
