package evolve

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/parser"
)

// MaxConditionNodes bounds condition complexity; anything larger is a
// catalog mistake, not a real adaptation rule.
const MaxConditionNodes = 100

// RuleSpec is one entry of the declarative rule catalog: a unique name,
// the human-readable description recorded in evolution history, the
// condition expression, and the minimum time before the rule may be
// reconsidered after firing.
type RuleSpec struct {
	Name        string
	Description string
	When        string
	Cooldown    time.Duration
}

// DefaultCatalog returns the built-in adaptations of the portfolio page,
// in evaluation order.
func DefaultCatalog() []RuleSpec {
	return []RuleSpec{
		{
			Name:        "projects_priority",
			Description: "Projects section promoted to the top",
			When:        "clicks.projects > clicks.about + 2 && dwell.projects > dwell.about",
			Cooldown:    30 * time.Second,
		},
		{
			Name:        "contact_nudge",
			Description: "Contact section highlighted",
			When:        "dwell.total > 45s && clicks.contact == 0",
			Cooldown:    60 * time.Second,
		},
		{
			Name:        "deep_scroller",
			Description: "Footer easter egg revealed",
			When:        "scroll.depth >= 90",
			Cooldown:    30 * time.Second,
		},
		{
			Name:        "dark_preference",
			Description: "Dark palette locked in",
			When:        `theme.preference == "dark" && clicks.themeToggle >= 3`,
			Cooldown:    2 * time.Minute,
		},
		{
			Name:        "frequent_visitor",
			Description: "Welcome-back banner for returning visitors",
			When:        "visits.count >= 3",
			Cooldown:    time.Minute,
		},
		{
			Name:        "engaged_reader",
			Description: "About bio expanded",
			When:        "dwell.about > 30s && views.about >= 2",
			Cooldown:    time.Minute,
		},
		{
			Name:        "social_explorer",
			Description: "Social links raised above the fold",
			When:        "clicks.social >= 2 && clicks.cta >= 1",
			Cooldown:    time.Minute,
		},
		{
			Name:        "power_user",
			Description: "Playground section unlocked",
			When:        "score.engagement > 150 && clicks.total > 25",
			Cooldown:    5 * time.Minute,
		},
	}
}

type catalogFile struct {
	Rules []catalogRule `yaml:"rules"`
}

type catalogRule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	When        string `yaml:"when"`
	Cooldown    string `yaml:"cooldown"`
}

// LoadCatalogFile reads a YAML rule catalog. The file replaces the
// default catalog wholesale; order in the file is evaluation order.
func LoadCatalogFile(path string) ([]RuleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("catalog %s declares no rules", path)
	}

	specs := make([]RuleSpec, 0, len(file.Rules))
	for i, entry := range file.Rules {
		if entry.Name == "" {
			return nil, fmt.Errorf("catalog rule %d has no name", i)
		}
		spec := RuleSpec{
			Name:        entry.Name,
			Description: entry.Description,
			When:        entry.When,
		}
		if entry.Cooldown != "" {
			cooldown, err := time.ParseDuration(entry.Cooldown)
			if err != nil {
				return nil, fmt.Errorf("rule %s: bad cooldown %q: %w", entry.Name, entry.Cooldown, err)
			}
			if cooldown < 0 {
				return nil, fmt.Errorf("rule %s: negative cooldown", entry.Name)
			}
			spec.Cooldown = cooldown
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// compileRule parses and validates a spec into an engine-owned rule with
// fresh transient state.
func compileRule(spec RuleSpec) (*Rule, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("rule has no name")
	}

	condition, err := parser.Parse(spec.When)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", spec.Name, err)
	}

	if n := condition.CountNodes(); n > MaxConditionNodes {
		return nil, fmt.Errorf("rule %s: condition complexity (%d nodes) exceeds limit (%d)", spec.Name, n, MaxConditionNodes)
	}

	for _, ref := range parser.Metrics(condition) {
		if err := validateMetric(ref.Namespace, ref.Field); err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.Name, err)
		}
	}

	return &Rule{
		Name:        spec.Name,
		Description: spec.Description,
		Source:      spec.When,
		Cooldown:    spec.Cooldown,
		condition:   condition,
	}, nil
}

// CompileCatalog validates a full catalog, rejecting duplicate names.
// The check subcommand uses it to vet a file without running the engine.
func CompileCatalog(specs []RuleSpec) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", spec.Name)
		}
		seen[spec.Name] = true

		rule, err := compileRule(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
