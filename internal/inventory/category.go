package inventory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Ananth-NQI/estoque-backend/internal/utils"
)

// Category is one entry of the fixed category vocabulary. Name is what the
// menu shows, Label is the string stored on stock items.
type Category struct {
	Key      int
	Name     string
	Label    string
	Synonyms []string
}

// Categories is ordered as the numbered menu shown to users
var Categories = []Category{
	{Key: 1, Name: "Hortifruti", Label: "Hortifruti", Synonyms: []string{"hortifruti", "hortifrutti", "fruta", "frutas", "verdura", "verduras", "legume", "legumes", "feira"}},
	{Key: 2, Name: "Bebidas", Label: "Bebidas", Synonyms: []string{"bebida", "bebidas", "refrigerante", "refrigerantes", "suco", "sucos", "cerveja", "cervejas", "agua"}},
	{Key: 3, Name: "Padaria", Label: "Padaria", Synonyms: []string{"padaria", "pao", "paes", "bolo", "bolos"}},
	{Key: 4, Name: "Mercearia", Label: "Mercearia", Synonyms: []string{"mercearia", "mantimento", "mantimentos", "graos", "secos"}},
	{Key: 5, Name: "Açougue", Label: "Carnes", Synonyms: []string{"acougue", "carne", "carnes", "frango", "peixe", "peixes"}},
	{Key: 6, Name: "Frios", Label: "Laticínios", Synonyms: []string{"frios", "laticinio", "laticinios", "queijo", "queijos", "leite", "iogurte"}},
	{Key: 7, Name: "Limpeza", Label: "Limpeza", Synonyms: []string{"limpeza", "produtos de limpeza", "faxina"}},
	{Key: 8, Name: "Higiene/Farmácia", Label: "Higie./Farm.", Synonyms: []string{"higiene", "farmacia", "remedio", "remedios", "higiene pessoal"}},
	{Key: 9, Name: "Pet", Label: "Pet", Synonyms: []string{"pet", "pets", "racao", "animal", "animais"}},
	{Key: 10, Name: "Outros", Label: "Outros", Synonyms: []string{"outros", "outro", "diversos"}},
}

// CategoryByKey returns the category with the given menu number
func CategoryByKey(key int) (Category, bool) {
	for _, c := range Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// Matches reports whether a stored category value belongs to this category.
// Both the stored label and the menu name are accepted.
func (c Category) Matches(stored string) bool {
	s := utils.Normalize(stored)
	if s == "" {
		return false
	}
	return s == utils.Normalize(c.Label) || s == utils.Normalize(c.Name)
}

func (c Category) terms() []string {
	terms := []string{utils.Normalize(c.Name), utils.Normalize(c.Label)}
	for _, s := range c.Synonyms {
		terms = append(terms, utils.Normalize(s))
	}
	return terms
}

// ResolveCategoryAnswer resolves a reply to the category menu: by menu
// number first, then exact name or synonym, then partial name.
func ResolveCategoryAnswer(text string) (Category, bool) {
	normalized := utils.Normalize(text)
	if normalized == "" {
		return Category{}, false
	}

	if key, err := strconv.Atoi(normalized); err == nil {
		return CategoryByKey(key)
	}

	for _, c := range Categories {
		for _, term := range c.terms() {
			if normalized == term {
				return c, true
			}
		}
	}

	return FindCategoryInText(normalized)
}

// FindCategoryInText looks for any category term inside free text, in menu order
func FindCategoryInText(text string) (Category, bool) {
	normalized := utils.Normalize(text)
	if normalized == "" {
		return Category{}, false
	}
	padded := " " + normalized + " "

	for _, c := range Categories {
		for _, term := range c.terms() {
			if strings.Contains(padded, " "+term+" ") {
				return c, true
			}
			if len(normalized) >= 3 && !strings.Contains(normalized, " ") && strings.HasPrefix(term, normalized) {
				return c, true
			}
		}
	}
	return Category{}, false
}

// CategoryMenu renders the numbered category list
func CategoryMenu() string {
	var b strings.Builder
	for _, c := range Categories {
		fmt.Fprintf(&b, "%d. %s\n", c.Key, c.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}
