package formula

import (
	"fmt"
	"strings"

	"github.com/ihblv/hairhub-server/internal/brands"
)

const resultSchema = `{
  "analysis": "string: natural level, undertone, grey percentage, porosity, target",
  "scenarios": [
    {
      "title": "Primary | Alternate (cooler) | Alternate (warmer)",
      "condition": "string or null",
      "target_level": "integer 1-12 or null",
      "roots": {"formula": "string", "timing": "string", "note": "string or null"} or null,
      "melt": {"formula": "string", "timing": "string", "note": "string or null"} or null,
      "ends": {"formula": "string", "timing": "string", "note": "string or null"},
      "processing": ["string"],
      "confidence": "number 0-1"
    }
  ]
}`

// UserInstruction accompanies the photo in the user turn.
const UserInstruction = "Analyze the hair in this photo and return the formula JSON."

// BuildSystemPrompt renders the brand rules for one attempt. From the second
// attempt on it adds a strictness clause quoting the previous rejection.
func BuildSystemPrompt(category brands.Category, rule brands.Rule, attempt int, lastReason string) string {
	var b strings.Builder
	b.WriteString("You are a master colorist writing salon-ready hair color formulas from a client photo. Respond with strict JSON only.\n\n")
	fmt.Fprintf(&b, "Category: %s\nBrand: %s\n", category, rule.Name)

	if rule.IsRTU() {
		b.WriteString("Mixing: ready to use. Never state a ratio, a developer, or the word \"with\" in any formula.\n")
	} else {
		fmt.Fprintf(&b, "Mixing ratio: %s\nDeveloper: %s\n", rule.Ratio, rule.Developer)
		b.WriteString("Every formula must state the ratio in parentheses and name the developer after \"with\", e.g. \"<codes> (<ratio>) with <developer>\".\n")
	}
	if rule.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", rule.Notes)
	}

	if rule.UsesAllowList() {
		fmt.Fprintf(&b, "Allowed shades (use exactly these names): %s\n", strings.Join(rule.Shades, ", "))
	} else {
		fmt.Fprintf(&b, "Shade codes must match: %s\n", strings.Join(rule.Patterns, " | "))
	}
	b.WriteString("Separate shades in one formula with \" + \". Write \"N/A — <reason>\" when a step does not apply.\n\n")

	if category.SingleScenario() {
		b.WriteString("Return one scenario titled \"Primary\".\n")
	} else {
		fmt.Fprintf(&b, "Return up to %d scenarios: \"Primary\", then optional \"Alternate (cooler)\" and \"Alternate (warmer)\".\n", MaxScenarios)
	}

	b.WriteString("\nSchema:\n")
	b.WriteString(resultSchema)
	b.WriteString("\n")

	if attempt > 0 {
		fmt.Fprintf(&b, "\nSTRICT: use only real %s codes listed or described above. Do not invent codes or borrow codes from other brands.", rule.Name)
		if lastReason != "" {
			fmt.Fprintf(&b, " Your previous answer was rejected: %s.", lastReason)
		}
		b.WriteString("\n")
	}
	return b.String()
}
