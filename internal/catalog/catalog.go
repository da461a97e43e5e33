package catalog

import (
	"fmt"
	"strings"
)

type Category string

const (
	Male   Category = "MALE"
	Female Category = "FEMALE"
)

// DefaultCategory is used whenever the subject cannot be classified.
const DefaultCategory = Male

func Categories() []Category {
	return []Category{Male, Female}
}

func ParseCategory(value string) (Category, bool) {
	switch Category(strings.ToUpper(strings.TrimSpace(value))) {
	case Male:
		return Male, true
	case Female:
		return Female, true
	}
	return "", false
}

type Style struct {
	ID          string
	Label       string
	PromptKey   string
	Category    Category
	Description string
}

type Catalog struct {
	styles []Style
	byID   map[string]int
}

func New(styles []Style) (*Catalog, error) {
	c := &Catalog{
		styles: make([]Style, 0, len(styles)),
		byID:   make(map[string]int, len(styles)),
	}
	for _, s := range styles {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("style %q has empty id", s.Label)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate style id %q", id)
		}
		s.ID = id
		c.byID[id] = len(c.styles)
		c.styles = append(c.styles, s)
	}
	return c, nil
}

func (c *Catalog) List() []Style {
	out := make([]Style, len(c.styles))
	copy(out, c.styles)
	return out
}

func (c *Catalog) FilterByCategory(cat Category) []Style {
	var out []Style
	for _, s := range c.styles {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) ByID(id string) (Style, bool) {
	idx, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Style{}, false
	}
	return c.styles[idx], true
}

var defaultStyles = []Style{
	{ID: "m1", Label: "Business Suit", PromptKey: "Business Suit", Category: Male, Description: "Professional, sharp, confident"},
	{ID: "m2", Label: "Streetwear", PromptKey: "Streetwear Hoodie", Category: Male, Description: "Trendy, hoodie, urban"},
	{ID: "m3", Label: "Casual Denim", PromptKey: "Casual Denim", Category: Male, Description: "Relaxed, classic jeans jacket"},
	{ID: "m4", Label: "Sporty", PromptKey: "Sporty Athletic", Category: Male, Description: "Athletic, gym ready, energetic"},
	{ID: "m5", Label: "Leather Jacket", PromptKey: "Leather Jacket", Category: Male, Description: "Edgy, cool, masculine"},
	{ID: "m6", Label: "Old Money", PromptKey: "Old Money Sweater", Category: Male, Description: "Sophisticated, polo, sweater"},
	{ID: "m7", Label: "Formal Tuxedo", PromptKey: "Formal Tuxedo", Category: Male, Description: "Elegant, black tie, gala"},
	{ID: "m8", Label: "Summer Linen", PromptKey: "Summer Linen", Category: Male, Description: "Breezy, vacation, light"},
	{ID: "m9", Label: "Winter Coat", PromptKey: "Winter Overcoat", Category: Male, Description: "Warm, layered, stylish"},

	{ID: "f1", Label: "Evening Gown", PromptKey: "Evening Gown", Category: Female, Description: "Glamorous, red carpet, elegant"},
	{ID: "f2", Label: "Office Chic", PromptKey: "Office Chic Blazer", Category: Female, Description: "Professional, blazer, boss"},
	{ID: "f3", Label: "Street Style", PromptKey: "Urban Street Style", Category: Female, Description: "Trendy, urban, fashion-forward"},
	{ID: "f4", Label: "Boho Dress", PromptKey: "Boho Floral Dress", Category: Female, Description: "Flowy, floral, summer vibe"},
	{ID: "f5", Label: "Yoga Fit", PromptKey: "Yoga Wellness", Category: Female, Description: "Athleisure, healthy, active"},
	{ID: "f6", Label: "Edgy Leather", PromptKey: "Edgy Leather", Category: Female, Description: "Cool, biker jacket, bold"},
	{ID: "f7", Label: "Vintage Glam", PromptKey: "Vintage Glamour", Category: Female, Description: "Retro, hollywood, classic"},
	{ID: "f8", Label: "Cozy Knit", PromptKey: "Cozy Knitwear", Category: Female, Description: "Warm, soft, comfortable"},
	{ID: "f9", Label: "Cocktail Dress", PromptKey: "Cocktail Party", Category: Female, Description: "Party, fun, sophisticated"},
}

var defaultCatalog = mustNew(defaultStyles)

// Default returns the built-in catalog. It is shared and read-only.
func Default() *Catalog {
	return defaultCatalog
}

func mustNew(styles []Style) *Catalog {
	c, err := New(styles)
	if err != nil {
		panic(err)
	}
	return c
}
