package catalog

import (
	"fmt"
	"strings"
)

const ClassifyInstruction = "Analyze this image. Is the main person Male or Female? Respond with exactly one word: 'MALE' or 'FEMALE'."

type promptTemplate struct {
	Pronoun string
	Vibe    string
}

var promptTemplates = map[Category]promptTemplate{
	Male:   {Pronoun: "He", Vibe: "Make him look sunny, handsome, and confident."},
	Female: {Pronoun: "She", Vibe: "Make her look sexy, alluring, and moving."},
}

// BuildLookPrompt renders the category template for one style token.
// Unknown categories use the default category's template.
func BuildLookPrompt(cat Category, styleKey string) string {
	tpl, ok := promptTemplates[cat]
	if !ok {
		tpl = promptTemplates[DefaultCategory]
	}
	styleKey = strings.TrimSpace(styleKey)

	var b strings.Builder
	b.Grow(512)
	b.WriteString("Generate a medium-shot portrait of the person from the input image.\n")
	b.WriteString(fmt.Sprintf("OUTFIT: %s is wearing a %s.\n", tpl.Pronoun, styleKey))
	b.WriteString("VIBE: " + tpl.Vibe + "\n")
	b.WriteString("COMPOSITION: The subject must be perfectly CENTERED in the image.\n")
	b.WriteString("FACE: Keep the facial features EXACTLY the same as the source image (Identity Preservation).\n")
	b.WriteString(fmt.Sprintf("BACKGROUND: A suitable background that matches the %s theme.", styleKey))
	return b.String()
}
