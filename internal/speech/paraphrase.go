package speech

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rule replaces every match of Pattern with Replace. Replace may use $1
// style group references.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

type compiledRule struct {
	re      *regexp.Regexp
	replace string
}

// ParaphraseDictionary rewrites comment text into something a voice engine
// reads well. Rules run in order, each over the result of the previous one.
type ParaphraseDictionary struct {
	rules []compiledRule
}

var defaultRules = []Rule{
	{Pattern: `https?://[^\s]+`, Replace: "URL"},
	{Pattern: `[8８]{3,}`, Replace: "clap clap"},
	{Pattern: `(?i)[wｗ]{2,}$`, Replace: "lol"},
	{Pattern: `[!！]{2,}`, Replace: "!"},
	{Pattern: `[?？]{2,}`, Replace: "?"},
	{Pattern: `[ー〜~]{3,}`, Replace: "ー"},
	{Pattern: `\s{2,}`, Replace: " "},
}

func NewParaphraseDictionary(rules []Rule) (*ParaphraseDictionary, error) {
	d := &ParaphraseDictionary{}
	if err := d.add(rules); err != nil {
		return nil, err
	}
	return d, nil
}

// DefaultParaphraseDictionary holds the built-in rules.
func DefaultParaphraseDictionary() *ParaphraseDictionary {
	d, err := NewParaphraseDictionary(defaultRules)
	if err != nil {
		panic(err)
	}
	return d
}

// With returns a dictionary with extra rules appended after the existing
// ones.
func (d *ParaphraseDictionary) With(rules []Rule) (*ParaphraseDictionary, error) {
	out := &ParaphraseDictionary{rules: append([]compiledRule(nil), d.rules...)}
	if err := out.add(rules); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *ParaphraseDictionary) add(rules []Rule) error {
	for i, r := range rules {
		if r.Pattern == "" {
			return fmt.Errorf("paraphrase rule %d: empty pattern", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("paraphrase rule %d: %w", i, err)
		}
		d.rules = append(d.rules, compiledRule{re: re, replace: r.Replace})
	}
	return nil
}

func (d *ParaphraseDictionary) Process(text string) string {
	if d == nil {
		return text
	}
	for _, r := range d.rules {
		text = r.re.ReplaceAllString(text, r.replace)
	}
	return text
}

func (d *ParaphraseDictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rules)
}

type paraphraseFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadParaphraseFile reads rules from a YAML file of the form
//
//	rules:
//	  - pattern: "..."
//	    replace: "..."
func LoadParaphraseFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read paraphrase file: %w", err)
	}
	var file paraphraseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse paraphrase file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, errors.New("paraphrase file has no rules")
	}
	return file.Rules, nil
}
