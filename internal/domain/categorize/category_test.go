package categorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
expense:
  - name: Groceries
    keywords: [woolworths, coles]
    color: "#4CAF50"
  - name: Dining
    subcategories: [Coffee, Takeaway]
    keywords: [cafe, restaurant]
    patterns: ['\bpizz?a\b']
income:
  - name: Salary
    keywords: [salary, payroll]
`

func TestParseConfig(t *testing.T) {
	t.Run("valid yaml", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(sampleYAML))
		require.NoError(t, err)

		require.Len(t, cfg.Expense, 2)
		assert.Equal(t, "Groceries", cfg.Expense[0].Name)
		assert.Equal(t, "#4CAF50", cfg.Expense[0].Color)
		assert.Equal(t, []string{"Coffee", "Takeaway"}, cfg.Expense[1].Subcategories)
		require.Len(t, cfg.Income, 1)

		assert.Equal(t, []string{"Groceries", "Dining", "Salary"}, cfg.Names())
	})

	t.Run("lookup", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(sampleYAML))
		require.NoError(t, err)

		cat, ok := cfg.Lookup("Salary")
		assert.True(t, ok)
		assert.Equal(t, "Salary", cat.Name)

		_, ok = cfg.Lookup("Nope")
		assert.False(t, ok)
	})

	t.Run("no expense categories", func(t *testing.T) {
		_, err := ParseConfig([]byte("income:\n  - name: Salary\n    keywords: [salary]\n"))
		assert.Error(t, err)
	})

	t.Run("duplicate names", func(t *testing.T) {
		_, err := ParseConfig([]byte("expense:\n  - name: A\n    keywords: [x]\n  - name: A\n    keywords: [y]\n"))
		assert.Error(t, err)
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("{{{{"))
		assert.Error(t, err)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotEmpty(t, cfg.Expense)
	require.NotEmpty(t, cfg.Income)

	// default set must build a working engine
	_, err := NewEngine(cfg)
	assert.NoError(t, err)
}
