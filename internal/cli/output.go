package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/presentation"
)

var (
	headingColor = color.New(color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func verdictLabel(v core.Verdict) string {
	switch v {
	case core.VerdictBlacklist:
		return color.New(color.FgRed, color.Bold).Sprint("BLACKLIST")
	case core.VerdictWhitelist:
		return color.New(color.FgHiGreen).Sprint("WHITELIST")
	default:
		return color.New(color.FgYellow).Sprint("UNKNOWN")
	}
}

// printOutcome writes one pipeline run
func printOutcome(w io.Writer, subject string, out *core.Outcome) {
	headingColor.Fprintf(w, "=== %s ===\n", subject)
	if out.Excluded {
		fmt.Fprintf(w, "Verdict: %s\n", dimColor.Sprint("excluded (never sent to the classifier)"))
	} else {
		fmt.Fprintf(w, "Verdict: %s\n", verdictLabel(out.Verdict()))
	}
	fmt.Fprintf(w, "State:   %s\n", out.StateName)
	if out.Record != nil {
		fmt.Fprintf(w, "Key:     %s\n", out.Record.SubjectKey)
	}
	if out.Skipped {
		fmt.Fprintf(w, "Stored:  %s\n", dimColor.Sprint("no (storage policy)"))
	}
	if out.Notification != nil {
		fmt.Fprintf(w, "Alert:   %s\n", out.Notification.Message)
	}
	if out.Err != nil {
		fmt.Fprintf(w, "Error:   %s\n", color.New(color.FgRed).Sprint(out.Err))
	}
}

// printLists writes the four classification lists
func printLists(w io.Writer, lists presentation.Lists) {
	sections := []struct {
		title string
		cards []presentation.Card
	}{
		{"URL blacklist", lists.URLBlacklist},
		{"URL whitelist", lists.URLWhitelist},
		{"Email blacklist", lists.EmailBlacklist},
		{"Email whitelist", lists.EmailWhitelist},
	}

	for _, s := range sections {
		headingColor.Fprintf(w, "%s (%d)\n", s.title, len(s.cards))
		if len(s.cards) == 0 {
			fmt.Fprintln(w, dimColor.Sprint("  (empty)"))
		}
		for _, c := range s.cards {
			printCard(w, c)
		}
		fmt.Fprintln(w)
	}
}

func printCard(w io.Writer, c presentation.Card) {
	stamp := dimColor.Sprint(c.ClassifiedAt.Local().Format("2006-01-02 15:04"))
	if c.Kind == core.KindURL {
		fmt.Fprintf(w, "  %s %s %s\n", verdictLabel(c.Verdict), c.SubjectKey, stamp)
		return
	}
	fmt.Fprintf(w, "  %s %s: %s %s\n", verdictLabel(c.Verdict), c.Heading, c.Subject, stamp)
	fmt.Fprintf(w, "      from %s  %s\n", c.Sender, dimColor.Sprint(c.BodyPreview))
}
