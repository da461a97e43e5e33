package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/orchestrator"
	"outfit-studio/internal/telegram"
)

const (
	callbackPrefix = "lk"

	actionGenerate = "generate"
	actionReset    = "reset"
)

func actionKeyboard(ownerID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎨 Generate", cb(ownerID, actionGenerate)),
			tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, actionReset)),
		),
	)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, ownerID, strings.Join(parts, ":"))
}

func parseCallback(data string) (ownerID int64, action string, ok bool) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return 0, "", false
	}
	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return ownerID, parts[2], true
}

func progressText(percent int) string {
	percent = max(0, min(100, percent))
	const width = 10
	filled := percent / width
	return fmt.Sprintf("🎨 Designing... %d%%\n%s%s", percent,
		strings.Repeat("▰", filled), strings.Repeat("▱", width-filled))
}

func doneText(snap orchestrator.Snapshot) string {
	text := fmt.Sprintf("✅ Done! %d of %d looks ready", len(snap.Artifacts), snap.Total)
	if snap.Category != "" {
		text += " (" + categoryName(snap.Category) + ")"
	}
	return text
}

func albumPhotos(artifacts []orchestrator.Artifact) []telegram.Photo {
	photos := make([]telegram.Photo, 0, len(artifacts))
	for _, a := range artifacts {
		photos = append(photos, telegram.Photo{Image: a.ImageData, Caption: a.StyleLabel})
	}
	return photos
}

func stylesText(c *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("👗 Styles\n")
	for _, cat := range catalog.Categories() {
		styles := c.FilterByCategory(cat)
		if len(styles) == 0 {
			continue
		}
		b.WriteString("\n" + categoryName(cat) + ":\n")
		for _, s := range styles {
			b.WriteString("• " + s.Label)
			if s.Description != "" {
				b.WriteString(" - " + s.Description)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func categoryName(cat catalog.Category) string {
	switch cat {
	case catalog.Female:
		return "Women"
	case catalog.Male:
		return "Men"
	default:
		return string(cat)
	}
}
