package importer

import (
	"context"
	"strings"

	"github.com/dvloznov/statement-importer/internal/logger"
)

// Rule maps a lowercase keyword to a category name.
type Rule struct {
	Keyword  string
	Category string
}

// DefaultRules are checked in order; the first keyword contained in the
// description wins.
var DefaultRules = []Rule{
	{"zomato", "Food & Dining"},
	{"swiggy", "Food & Dining"},
	{"restaurant", "Food & Dining"},
	{"cafe", "Food & Dining"},
	{"coffee", "Food & Dining"},
	{"food", "Food & Dining"},
	{"grocery", "Groceries"},
	{"supermarket", "Groceries"},
	{"amazon", "Shopping"},
	{"flipkart", "Shopping"},
	{"myntra", "Shopping"},
	{"petrol", "Transport"},
	{"diesel", "Transport"},
	{"fuel", "Transport"},
	{"ola", "Transport"},
	{"uber", "Transport"},
	{"metro", "Transport"},
	{"bus", "Transport"},
	{"train", "Travel"},
	{"irctc", "Travel"},
	{"air", "Travel"},
	{"airasia", "Travel"},
	{"indigo", "Travel"},
	{"spicejet", "Travel"},
	{"hotel", "Travel"},
	{"rent", "Rent"},
	{"electricity", "Utilities"},
	{"water", "Utilities"},
	{"internet", "Utilities"},
	{"broadband", "Utilities"},
	{"mobile", "Utilities"},
	{"prepaid", "Utilities"},
	{"postpaid", "Utilities"},
	{"dth", "Utilities"},
	{"insurance", "Insurance"},
	{"lic", "Insurance"},
	{"health", "Healthcare"},
	{"hospital", "Healthcare"},
	{"pharmacy", "Healthcare"},
	{"medical", "Healthcare"},
	{"doctor", "Healthcare"},
	{"pharmeasy", "Healthcare"},
	{"1mg", "Healthcare"},
	{"upi", "Transfers"},
	{"imps", "Transfers"},
	{"neft", "Transfers"},
	{"rtgs", "Transfers"},
	{"atm", "Cash Withdrawal"},
	{"cash", "Cash Withdrawal"},
}

// Classifier suggests a category name for a transaction description.
type Classifier struct {
	rules     []Rule
	suggester CategorySuggester
}

// NewClassifier creates a classifier over the given rules. A nil rule slice
// selects DefaultRules; suggester may be nil.
func NewClassifier(rules []Rule, suggester CategorySuggester) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules, suggester: suggester}
}

// Classify returns the suggested category name or "" when nothing matches.
// Keyword rules come first, then the user's own category names, then the
// suggester, whose answer must name one of the user's categories.
func (c *Classifier) Classify(ctx context.Context, description string, userCategories []string) string {
	lower := strings.ToLower(description)
	for _, r := range c.rules {
		if strings.Contains(lower, r.Keyword) {
			return r.Category
		}
	}
	for _, name := range userCategories {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}

	if c.suggester == nil || len(userCategories) == 0 {
		return ""
	}
	log := logger.FromContext(ctx)
	answer, err := c.suggester.SuggestCategory(ctx, description, userCategories)
	if err != nil {
		log.Warn().Err(err).Str("description", description).Msg("category suggestion failed")
		return ""
	}
	answer = strings.TrimSpace(answer)
	for _, name := range userCategories {
		if strings.EqualFold(name, answer) {
			return name
		}
	}
	if answer != "" {
		log.Debug().Str("answer", answer).Msg("ignoring suggestion outside the user's categories")
	}
	return ""
}
