package core

import (
	"fmt"
	"strings"
	"time"
)

// Verdict is the outcome of classifying a URL or an email
type Verdict string

const (
	VerdictWhitelist Verdict = "whitelist"
	VerdictBlacklist Verdict = "blacklist"
	VerdictUnknown   Verdict = "unknown"
)

// Valid reports whether v is one of the three known verdicts
func (v Verdict) Valid() bool {
	switch v {
	case VerdictWhitelist, VerdictBlacklist, VerdictUnknown:
		return true
	}
	return false
}

// ParseVerdict parses a stored verdict value
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("invalid verdict: %q", s)
	}
	return v, nil
}

// VerdictFromPrediction maps a classifier label to a verdict.
// Unrecognised labels are unknown.
func VerdictFromPrediction(label string) Verdict {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "phishing", "blacklist":
		return VerdictBlacklist
	case "legitimate", "whitelist":
		return VerdictWhitelist
	default:
		return VerdictUnknown
	}
}

// Kind is the type of subject a record was classified from
type Kind string

const (
	KindURL   Kind = "url"
	KindEmail Kind = "email"
)

// ParseKind parses a stored kind value
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindURL, KindEmail:
		return k, nil
	}
	return "", fmt.Errorf("invalid kind: %q", s)
}

// EmailMeta holds the fields captured from a scanned email
type EmailMeta struct {
	Sender      string `json:"sender"`
	Subject     string `json:"subject"`
	BodyExcerpt string `json:"body_excerpt"`
}

// Record is a persisted classification
type Record struct {
	SubjectKey   string     `json:"subject_key"`
	Kind         Kind       `json:"kind"`
	Verdict      Verdict    `json:"verdict"`
	Email        *EmailMeta `json:"email,omitempty"`
	ClassifiedAt time.Time  `json:"classified_at"`
}

// EmailCandidate is an email awaiting classification
type EmailCandidate struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// EmailKey builds the synthetic subject key for an email scanned at t
func EmailKey(t time.Time) string {
	return fmt.Sprintf("email_%d", t.UnixMilli())
}

// Notification is the user-facing alert raised after a record is persisted
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	ButtonTitle string    `json:"button_title"`
	SubjectKey  string    `json:"subject_key"`
	Kind        Kind      `json:"kind"`
	Verdict     Verdict   `json:"verdict"`
	CreatedAt   time.Time `json:"created_at"`
}
