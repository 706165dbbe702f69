// Package categorize assigns spending categories to transactions: a local
// keyword/pattern engine first, an external classification service for the
// leftovers, and user corrections feeding back into the session rule set.
package categorize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category is one assignable spending category.
type Category struct {
	Name          string   `yaml:"name"`
	Subcategories []string `yaml:"subcategories,omitempty"`
	// Keywords are literal substrings matched via Aho-Corasick.
	Keywords []string `yaml:"keywords"`
	// Patterns are regular expressions for structure the keywords miss.
	Patterns []string `yaml:"patterns,omitempty"`
	// Color is the chart color handed to the visualization layer.
	Color string `yaml:"color,omitempty"`
}

// Config is the session category configuration, loaded once per session.
// Order matters: earlier categories win exact scoring ties during fuzzy
// fallback.
type Config struct {
	Expense []Category `yaml:"expense"`
	Income  []Category `yaml:"income"`
}

// LoadConfig reads a YAML category file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading category config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML category config bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing category config: %w", err)
	}
	if len(cfg.Expense) == 0 {
		return nil, fmt.Errorf("category config defines no expense categories")
	}
	seen := map[string]bool{}
	for _, c := range append(append([]Category{}, cfg.Expense...), cfg.Income...) {
		if c.Name == "" {
			return nil, fmt.Errorf("category with empty name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	return &cfg, nil
}

// Names returns all category names, expense first.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Expense)+len(c.Income))
	for _, cat := range c.Expense {
		names = append(names, cat.Name)
	}
	for _, cat := range c.Income {
		names = append(names, cat.Name)
	}
	return names
}

// Lookup finds a category by name.
func (c *Config) Lookup(name string) (Category, bool) {
	for _, cat := range c.Expense {
		if cat.Name == name {
			return cat, true
		}
	}
	for _, cat := range c.Income {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// DefaultConfig returns the built-in category set, used when no YAML file
// is configured.
func DefaultConfig() *Config {
	return &Config{
		Expense: []Category{
			{Name: "Groceries", Keywords: []string{"woolworths", "coles", "aldi", "iga", "supermarket", "grocery", "market"}, Color: "#4CAF50"},
			{Name: "Dining", Subcategories: []string{"Restaurants", "Takeaway", "Coffee"}, Keywords: []string{"restaurant", "cafe", "coffee", "mcdonalds", "kfc", "uber eats", "doordash", "deliveroo", "bakery", "pizza"}, Color: "#FF9800"},
			{Name: "Transport", Subcategories: []string{"Fuel", "Public Transit", "Rideshare"}, Keywords: []string{"uber", "taxi", "fuel", "petrol", "shell", "bp connect", "caltex", "opal", "myki", "parking"}, Color: "#2196F3"},
			{Name: "Utilities", Keywords: []string{"electricity", "energy", "water", "gas", "internet", "telstra", "optus", "vodafone"}, Color: "#9C27B0"},
			{Name: "Entertainment", Subcategories: []string{"Streaming", "Gaming"}, Keywords: []string{"netflix", "spotify", "disney", "cinema", "steam", "playstation", "xbox"}, Color: "#E91E63"},
			{Name: "Shopping", Keywords: []string{"amazon", "ebay", "kmart", "target", "ikea", "bunnings"}, Color: "#795548"},
			{Name: "Health", Keywords: []string{"pharmacy", "chemist", "doctor", "dental", "medicare", "physio"}, Color: "#F44336"},
			{Name: "Housing", Keywords: []string{"rent", "mortgage", "strata", "council rates"}, Color: "#607D8B"},
		},
		Income: []Category{
			{Name: "Salary", Keywords: []string{"salary", "payroll", "wages"}, Color: "#8BC34A"},
			{Name: "Other Income", Keywords: []string{"refund", "rebate", "dividend", "interest"}, Color: "#CDDC39"},
		},
	}
}
