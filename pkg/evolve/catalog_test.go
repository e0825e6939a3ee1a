package evolve

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogCompiles(t *testing.T) {
	rules, err := CompileCatalog(DefaultCatalog())
	require.NoError(t, err)
	require.Len(t, rules, 8)

	// Evaluation order is catalog order.
	assert.Equal(t, "projects_priority", rules[0].Name)
	assert.Equal(t, "power_user", rules[len(rules)-1].Name)

	for _, rule := range rules {
		assert.NotEmpty(t, rule.Description, "rule %s has no description", rule.Name)
		assert.Greater(t, rule.Cooldown, time.Duration(0), "rule %s has no cooldown", rule.Name)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	content := `rules:
  - name: quick_scroller
    description: Reveal the footer early
    when: scroll.depth >= 75
    cooldown: 45s
  - name: night_owl
    description: Default to the dark palette
    when: theme.preference == "dark"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	specs, err := LoadCatalogFile(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, "quick_scroller", specs[0].Name)
	assert.Equal(t, 45*time.Second, specs[0].Cooldown)
	assert.Equal(t, time.Duration(0), specs[1].Cooldown)

	rules, err := CompileCatalog(specs)
	require.NoError(t, err)
	assert.Equal(t, "scroll.depth >= 75", rules[0].Source)
}

func TestLoadCatalogFileErrors(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadCatalogFile(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("NotYAML", func(t *testing.T) {
		path := write("garbage.yaml", "{{{{")
		_, err := LoadCatalogFile(path)
		assert.Error(t, err)
	})

	t.Run("NoRules", func(t *testing.T) {
		path := write("empty.yaml", "rules: []")
		_, err := LoadCatalogFile(path)
		assert.ErrorContains(t, err, "declares no rules")
	})

	t.Run("UnnamedRule", func(t *testing.T) {
		path := write("unnamed.yaml", "rules:\n  - when: scroll.depth > 10\n")
		_, err := LoadCatalogFile(path)
		assert.ErrorContains(t, err, "has no name")
	})

	t.Run("BadCooldown", func(t *testing.T) {
		path := write("cooldown.yaml", "rules:\n  - name: r\n    when: scroll.depth > 10\n    cooldown: sometimes\n")
		_, err := LoadCatalogFile(path)
		assert.ErrorContains(t, err, "bad cooldown")
	})

	t.Run("NegativeCooldown", func(t *testing.T) {
		path := write("negative.yaml", "rules:\n  - name: r\n    when: scroll.depth > 10\n    cooldown: -5s\n")
		_, err := LoadCatalogFile(path)
		assert.ErrorContains(t, err, "negative cooldown")
	})
}

func TestCompileCatalogRejections(t *testing.T) {
	t.Run("DuplicateNames", func(t *testing.T) {
		_, err := CompileCatalog([]RuleSpec{
			{Name: "twin", When: "scroll.depth > 10"},
			{Name: "twin", When: "scroll.depth > 20"},
		})
		assert.ErrorContains(t, err, "duplicate rule name")
	})

	t.Run("UnknownMetric", func(t *testing.T) {
		_, err := CompileCatalog([]RuleSpec{
			{Name: "typo", When: "clicks.porjects > 3"},
		})
		assert.ErrorContains(t, err, "unknown metric")
	})

	t.Run("SyntaxError", func(t *testing.T) {
		_, err := CompileCatalog([]RuleSpec{
			{Name: "broken", When: "clicks.projects >"},
		})
		assert.Error(t, err)
	})

	t.Run("EmptyCondition", func(t *testing.T) {
		_, err := CompileCatalog([]RuleSpec{
			{Name: "blank", When: ""},
		})
		assert.Error(t, err)
	})

	t.Run("ComplexityCap", func(t *testing.T) {
		clauses := make([]string, 0, 40)
		for i := 0; i < 40; i++ {
			clauses = append(clauses, "clicks.total > 0")
		}
		_, err := CompileCatalog([]RuleSpec{
			{Name: "monster", When: strings.Join(clauses, " && ")},
		})
		assert.ErrorContains(t, err, "complexity")
	})
}
