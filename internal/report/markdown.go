package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ihblv/hairhub-server/internal/formula"
)

// Card is everything printed on a formula card.
type Card struct {
	Brand     string                 `json:"brand"`
	Category  string                 `json:"category"`
	Client    string                 `json:"client,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Result    formula.AnalysisResult `json:"result"`
}

// Markdown renders a card as GitHub-flavored markdown. Scenarios marked not
// applicable are listed with their note only.
func Markdown(c Card) string {
	var b strings.Builder
	b.WriteString("# Formula Card\n\n")
	if c.Client != "" {
		fmt.Fprintf(&b, "**Client:** %s  \n", c.Client)
	}
	fmt.Fprintf(&b, "**Brand:** %s  \n**Category:** %s\n\n", c.Brand, c.Category)

	b.WriteString("## Analysis\n\n")
	if a := strings.TrimSpace(c.Result.Analysis); a != "" {
		b.WriteString(a)
	} else {
		b.WriteString("_No analysis returned._")
	}
	b.WriteString("\n\n")

	for _, s := range c.Result.Scenarios {
		title := s.Title
		if title == "" {
			title = "Scenario"
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		if s.NA {
			note := "Not applicable."
			if s.Note != nil {
				note = *s.Note
			}
			fmt.Fprintf(&b, "_%s_\n\n", note)
			continue
		}
		if s.Condition != nil {
			fmt.Fprintf(&b, "**When:** %s  \n", *s.Condition)
		}
		if s.TargetLevel != nil {
			fmt.Fprintf(&b, "**Target level:** %d  \n", *s.TargetLevel)
		}
		fmt.Fprintf(&b, "**Confidence:** %.0f%%\n\n", s.Confidence*100)

		b.WriteString("| Zone | Formula | Timing |\n|---|---|---|\n")
		writeRow(&b, "Roots", s.Roots)
		writeRow(&b, "Melt", s.Melt)
		ends := s.Ends
		writeRow(&b, "Ends", &ends)
		b.WriteString("\n")

		if len(s.Processing) > 0 {
			b.WriteString("### Processing\n\n")
			for i, line := range s.Processing {
				fmt.Fprintf(&b, "%d. %s\n", i+1, line)
			}
			b.WriteString("\n")
		}
	}
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "---\n\nGenerated %s\n", c.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}

func writeRow(b *strings.Builder, zone string, step *formula.Step) {
	if step == nil || strings.TrimSpace(step.Formula) == "" {
		return
	}
	fmt.Fprintf(b, "| %s | %s | %s |\n", zone, escapeCell(step.Formula), escapeCell(step.Timing))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "|", `\|`)
}
