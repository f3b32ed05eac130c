package report

import (
	"fmt"
	"slices"
	"strings"

	"expenso/internal/core"
)

// CategoryResolver decides which bucket an expense belongs to. Returning
// a blank category sends the expense to core.Uncategorized.
type CategoryResolver interface {
	Resolve(e core.Expense) core.Category
}

// ResolverFunc adapts a plain function to CategoryResolver.
type ResolverFunc func(core.Expense) core.Category

func (f ResolverFunc) Resolve(e core.Expense) core.Category {
	return f(e)
}

// FieldResolver uses the category stored on the expense.
type FieldResolver struct{}

func (FieldResolver) Resolve(e core.Expense) core.Category {
	return core.Category(strings.TrimSpace(string(e.Category)))
}

// NameResolver buckets by the lower-cased expense name. Quick entries
// without a category are typically named after what they are ("coffee").
type NameResolver struct{}

func (NameResolver) Resolve(e core.Expense) core.Category {
	return core.Category(strings.ToLower(strings.TrimSpace(e.Name)))
}

// Rule maps expenses whose name contains Keyword to Category.
type Rule struct {
	Keyword  string
	Category core.Category
}

// RuleResolver applies the first matching rule; keywords are matched
// case-insensitively. Expenses matching no rule fall back to Fallback, or
// to their own category field when Fallback is nil.
type RuleResolver struct {
	Rules    []Rule
	Fallback CategoryResolver
}

func (r RuleResolver) Resolve(e core.Expense) core.Category {
	name := strings.ToLower(e.Name)
	for _, rule := range r.Rules {
		kw := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if kw != "" && strings.Contains(name, kw) {
			return rule.Category
		}
	}
	if r.Fallback != nil {
		return r.Fallback.Resolve(e)
	}
	return FieldResolver{}.Resolve(e)
}

// ParseRules reads "keyword=Category" pairs separated by ';'.
func ParseRules(s string) ([]Rule, error) {
	var rules []Rule
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kw, cat, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(kw) == "" || strings.TrimSpace(cat) == "" {
			return nil, fmt.Errorf("invalid category rule %q (want keyword=Category)", part)
		}
		rules = append(rules, Rule{
			Keyword:  strings.TrimSpace(kw),
			Category: core.Category(strings.TrimSpace(cat)),
		})
	}
	return rules, nil
}

func resolve(r CategoryResolver, e core.Expense) core.Category {
	if r == nil {
		r = FieldResolver{}
	}
	c := r.Resolve(e)
	if c.IsBlank() {
		return core.Uncategorized
	}
	return c
}

// Resolver names accepted by NewResolver.
const (
	ResolverField = "field"
	ResolverName  = "name"
	ResolverRules = "rules"
)

// ResolverNames lists the names NewResolver accepts.
func ResolverNames() []string {
	return []string{ResolverField, ResolverName, ResolverRules}
}

// NewResolver builds the resolver called name. An empty name is "field".
// Non-empty rules are applied first and fall back to the named resolver;
// "rules" on its own falls back to the category field.
func NewResolver(name string, rules []Rule) (CategoryResolver, error) {
	var base CategoryResolver
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ResolverField, ResolverRules:
		base = FieldResolver{}
	case ResolverName:
		base = NameResolver{}
	default:
		return nil, fmt.Errorf("unknown category resolver: %s", name)
	}
	if len(rules) == 0 {
		return base, nil
	}
	return RuleResolver{Rules: slices.Clone(rules), Fallback: base}, nil
}
