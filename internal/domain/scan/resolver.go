package scan

import (
	"strings"
	"unicode"

	"github.com/xenking/kart-pos/internal/domain/catalog"
)

// Strategy is one step of the fallback chain. Match must not mutate the index.
type Strategy struct {
	Name  string
	Match func(tok Token, idx *catalog.Index) (catalog.Product, bool)
}

// Match is a successful resolution.
type Match struct {
	Product  catalog.Product
	Token    Token
	Strategy string
}

// Resolver tries its strategies in order and stops at the first match.
type Resolver struct {
	strategies []Strategy
}

// NewResolver returns a Resolver with the given strategies, or the default
// chain when none are passed.
func NewResolver(strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{strategies: strategies}
}

// DefaultStrategies is the production fallback chain:
// exact key, declared price in name, digit run as key, code in name.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "exact-key", Match: matchExactKey},
		{Name: "declared-price-in-name", Match: matchDeclaredPriceInName},
		{Name: "digit-run-key", Match: matchDigitRun},
		{Name: "code-in-name", Match: matchCodeInName},
	}
}

// Resolve looks up tok. The second result is false when no strategy matched.
func (r *Resolver) Resolve(tok Token, idx *catalog.Index) (Match, bool) {
	if strings.TrimSpace(tok.Code) == "" && !tok.HasDeclaredTotal() {
		return Match{}, false
	}
	for _, s := range r.strategies {
		if p, ok := s.Match(tok, idx); ok {
			return Match{Product: p, Token: tok, Strategy: s.Name}, true
		}
	}
	return Match{}, false
}

func matchExactKey(tok Token, idx *catalog.Index) (catalog.Product, bool) {
	if strings.TrimSpace(tok.Code) == "" {
		return catalog.Product{}, false
	}
	return idx.Lookup(tok.Code)
}

// matchDeclaredPriceInName finds the first product whose name carries the
// rounded declared price as a token. A name containing an unrelated number
// can match; this step relies on labelling conventions.
func matchDeclaredPriceInName(tok Token, idx *catalog.Index) (catalog.Product, bool) {
	if !tok.HasDeclaredTotal() {
		return catalog.Product{}, false
	}
	return findByNameToken(idx, tok.DeclaredTotal.Decimal.Round(0).String())
}

func matchDigitRun(tok Token, idx *catalog.Index) (catalog.Product, bool) {
	run := firstDigitRun(tok.Code)
	if run == "" || run == strings.TrimSpace(tok.Code) {
		return catalog.Product{}, false
	}
	return idx.Lookup(run)
}

func matchCodeInName(tok Token, idx *catalog.Index) (catalog.Product, bool) {
	return findByNameToken(idx, tok.Code)
}

// findByNameToken returns the first product whose lower-cased name contains
// token as "(token)", "[token]" or a whitespace-delimited word.
func findByNameToken(idx *catalog.Index, token string) (catalog.Product, bool) {
	token = catalog.NormalizeKey(token)
	if token == "" {
		return catalog.Product{}, false
	}
	paren, bracket := "("+token+")", "["+token+"]"
	for _, p := range idx.Products() {
		name := strings.ToLower(p.Name)
		if strings.Contains(name, paren) || strings.Contains(name, bracket) {
			return p, true
		}
		for _, field := range strings.Fields(name) {
			if field == token {
				return p, true
			}
		}
	}
	return catalog.Product{}, false
}

// firstDigitRun returns the first maximal run of ASCII digits in s.
func firstDigitRun(s string) string {
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return ""
	}
	end := strings.IndexFunc(s[start:], func(r rune) bool { return !isDigit(r) })
	if end < 0 {
		return s[start:]
	}
	return s[start : start+end]
}

func isDigit(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsDigit(r)
}
