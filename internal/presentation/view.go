// Package presentation derives the popup's four classification lists from
// the store and keeps them current as records change.
package presentation

import (
	"fmt"
	"sort"
	"time"

	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/utils"
)

// PreviewLength is the number of body characters shown on an email card
const PreviewLength = 15

// Card headings
const (
	HeadingBlacklistedURL = "Blacklisted URL"
	HeadingWhitelistedURL = "Whitelisted URL"
	HeadingSuspiciousMail = "Suspicious Mail"
	HeadingSafeMail       = "Safe Mail"
)

// Card is one entry of a classification list
type Card struct {
	SubjectKey   string       `json:"subject_key"`
	Kind         core.Kind    `json:"kind"`
	Verdict      core.Verdict `json:"verdict"`
	Heading      string       `json:"heading"`
	Sender       string       `json:"sender,omitempty"`
	Subject      string       `json:"subject,omitempty"`
	BodyPreview  string       `json:"body_preview,omitempty"`
	ClassifiedAt time.Time    `json:"classified_at"`
}

// Lists holds the four lists shown by the popup
type Lists struct {
	URLWhitelist   []Card `json:"url_whitelist"`
	URLBlacklist   []Card `json:"url_blacklist"`
	EmailWhitelist []Card `json:"email_whitelist"`
	EmailBlacklist []Card `json:"email_blacklist"`
}

// Len returns the number of cards across all lists
func (l Lists) Len() int {
	return len(l.URLWhitelist) + len(l.URLBlacklist) + len(l.EmailWhitelist) + len(l.EmailBlacklist)
}

// Toast is a transient acknowledgement shown after a user action
type Toast struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

// Toast messages
const (
	ToastAllCleared = "All records cleared"
	ToastNoContent  = "No email content found"
)

// ClearedToast acknowledges a verdict-filtered clear
func ClearedToast(verdict core.Verdict, removed int) Toast {
	return Toast{
		Message: fmt.Sprintf("Cleared %d %s records", removed, verdict),
		Removed: removed,
	}
}

// Render builds the four lists from records. Records with an unknown verdict
// appear in none of them. Cards are ordered by subject key, so the output
// depends only on the set of records.
func Render(records []*core.Record) Lists {
	lists := Lists{
		URLWhitelist:   []Card{},
		URLBlacklist:   []Card{},
		EmailWhitelist: []Card{},
		EmailBlacklist: []Card{},
	}

	for _, r := range records {
		if r == nil {
			continue
		}
		switch {
		case r.Kind == core.KindURL && r.Verdict == core.VerdictWhitelist:
			lists.URLWhitelist = append(lists.URLWhitelist, card(r, HeadingWhitelistedURL))
		case r.Kind == core.KindURL && r.Verdict == core.VerdictBlacklist:
			lists.URLBlacklist = append(lists.URLBlacklist, card(r, HeadingBlacklistedURL))
		case r.Kind == core.KindEmail && r.Verdict == core.VerdictWhitelist:
			lists.EmailWhitelist = append(lists.EmailWhitelist, card(r, HeadingSafeMail))
		case r.Kind == core.KindEmail && r.Verdict == core.VerdictBlacklist:
			lists.EmailBlacklist = append(lists.EmailBlacklist, card(r, HeadingSuspiciousMail))
		}
	}

	for _, l := range [][]Card{lists.URLWhitelist, lists.URLBlacklist, lists.EmailWhitelist, lists.EmailBlacklist} {
		sort.Slice(l, func(i, j int) bool { return l[i].SubjectKey < l[j].SubjectKey })
	}
	return lists
}

func card(r *core.Record, heading string) Card {
	c := Card{
		SubjectKey:   r.SubjectKey,
		Kind:         r.Kind,
		Verdict:      r.Verdict,
		Heading:      heading,
		ClassifiedAt: r.ClassifiedAt,
	}
	if r.Email != nil {
		c.Sender = r.Email.Sender
		c.Subject = r.Email.Subject
		c.BodyPreview = utils.Preview(r.Email.BodyExcerpt, PreviewLength)
	}
	return c
}
