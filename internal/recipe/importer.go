package recipe

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/neuroti/Psi/internal/logging"
)

// Saver persists imported recipes.
type Saver interface {
	Save(ctx context.Context, rec Recipe) error
}

// Importer reads schema.org Recipe markup from a web page into the catalog.
type Importer struct {
	client *http.Client
	saver  Saver
}

// NewImporter creates an Importer. A nil client gets a 15 second timeout.
func NewImporter(client *http.Client, saver Saver) *Importer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Importer{client: client, saver: saver}
}

// Import fetches url, extracts the recipe and saves it. Importing the same
// URL again updates the same recipe.
func (i *Importer) Import(ctx context.Context, url string) (*Recipe, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	rec, err := extractRecipe(doc)
	if err != nil {
		return nil, err
	}
	rec.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
	rec.SourceURL = url

	if err := i.saver.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save recipe: %w", err)
	}
	logging.Info().Str("id", rec.ID).Str("name", rec.Name).Int("ingredients", len(rec.Ingredients)).Msg("recipe imported")
	return &rec, nil
}

func extractRecipe(doc *goquery.Document) (Recipe, error) {
	var node map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			logging.Debug().Err(err).Msg("skipping unparsable JSON-LD block")
			return true
		}
		node = findRecipeNode(v)
		return node == nil
	})
	if node == nil {
		return Recipe{}, fmt.Errorf("no schema.org Recipe found on page")
	}

	rec := Recipe{
		Name:         strings.TrimSpace(asString(node["name"])),
		Instructions: instructionsText(node["recipeInstructions"]),
	}
	if rec.Name == "" {
		return Recipe{}, fmt.Errorf("recipe has no name")
	}

	seen := make(map[string]bool)
	for _, line := range asStrings(node["recipeIngredient"]) {
		if ing := normalizeIngredient(line); ing != "" && !seen[ing] {
			seen[ing] = true
			rec.Ingredients = append(rec.Ingredients, ing)
		}
	}

	minutes, ok := parseISODuration(asString(node["totalTime"]))
	if !ok {
		cook, _ := parseISODuration(asString(node["cookTime"]))
		prep, _ := parseISODuration(asString(node["prepTime"]))
		minutes = cook + prep
	}
	rec.CookingTimeMinutes = minutes
	if rec.CookingTimeMinutes <= 0 {
		rec.CookingTimeMinutes = DefaultCookingTime
	}

	tagSeen := make(map[string]bool)
	for _, raw := range append(asStrings(node["recipeCategory"]), keywords(node["keywords"])...) {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag != "" && !tagSeen[tag] {
			tagSeen[tag] = true
			rec.Tags = append(rec.Tags, tag)
		}
	}

	rec.Difficulty = guessDifficulty(rec.CookingTimeMinutes, len(rec.Ingredients))
	return rec, nil
}

func findRecipeNode(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if n := findRecipeNode(item); n != nil {
				return n
			}
		}
	case map[string]any:
		if isRecipeType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findRecipeNode(graph)
		}
	}
	return nil
}

func isRecipeType(v any) bool {
	for _, s := range asStrings(v) {
		if s == "Recipe" {
			return true
		}
	}
	return false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return asString(t[0])
		}
	}
	return ""
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func keywords(v any) []string {
	if s, ok := v.(string); ok {
		return strings.Split(s, ",")
	}
	return asStrings(v)
}

// instructionsText flattens plain text, HowToStep lists and HowToSection
// lists into one step per line.
func instructionsText(v any) string {
	var steps []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				steps = append(steps, s)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			if items, ok := t["itemListElement"]; ok {
				walk(items)
				return
			}
			walk(t["text"])
		}
	}
	walk(v)
	return strings.Join(steps, "\n")
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// parseISODuration converts an ISO-8601 duration such as PT1H30M to whole
// minutes.
func parseISODuration(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "P" || s == "PT" {
		return 0, false
	}
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	num := func(x string) float64 {
		if x == "" {
			return 0
		}
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	minutes := num(m[1])*24*60 + num(m[2])*60 + num(m[3]) + num(m[4])/60
	return int(math.Round(minutes)), true
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	quantityToken = regexp.MustCompile(`^[\d/.,\-½¼¾⅓⅔]+$`)
)

var unitWords = map[string]bool{
	"cup": true, "cups": true, "tbsp": true, "tsp": true, "tablespoon": true, "tablespoons": true,
	"teaspoon": true, "teaspoons": true, "g": true, "kg": true, "gram": true, "grams": true,
	"ml": true, "l": true, "oz": true, "ounce": true, "ounces": true, "lb": true, "lbs": true,
	"pound": true, "pounds": true, "pinch": true, "clove": true, "cloves": true, "slice": true,
	"slices": true, "can": true, "cans": true, "large": true, "medium": true, "small": true,
	"of": true, "a": true, "an": true,
}

// normalizeIngredient reduces "2 cloves garlic, minced" to "garlic".
func normalizeIngredient(line string) string {
	s := strings.ToLower(parenthetical.ReplaceAllString(line, ""))
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	words := strings.Fields(s)
	for len(words) > 0 && (quantityToken.MatchString(words[0]) || unitWords[words[0]]) {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func guessDifficulty(minutes, ingredients int) Difficulty {
	switch {
	case minutes <= 20 && ingredients <= 6:
		return Easy
	case minutes <= 45 && ingredients <= 12:
		return Medium
	default:
		return Hard
	}
}
