package nextjs

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

type Injection struct {
	Position string `yaml:"position,omitempty"`
	Append   string `yaml:"append,omitempty"`
	Prepend  string `yaml:"prepend,omitempty"`
	Replace  string `yaml:"replace,omitempty"`
}

// Rule modifies the pages whose path starts with one of Paths. A rule
// without paths applies to every page.
type Rule struct {
	Paths      []string    `yaml:"paths,omitempty"`
	Injections []Injection `yaml:"injections,omitempty"`
}

// RuleSet is applied first match wins: only the first rule matching a page
// runs its injections.
type RuleSet []Rule

var ruleExts = []string{".yml", ".yaml"}

// LoadRuleSet reads the rule files named by rulePaths, a ';'-separated list
// of .yml/.yaml files or directories searched recursively. Hidden entries
// are skipped. An empty rulePaths yields an empty set.
func LoadRuleSet(rulePaths string) (RuleSet, error) {
	var (
		rs   RuleSet
		errs []error
	)
	for _, p := range strings.Split(rulePaths, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rules, err := loadRules(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rs = append(rs, rules...)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("error loading page rules: %w", err)
	}

	if len(rs) > 0 {
		log.Printf("INFO: Loaded %d page rules", rs.Count())
	}
	return rs, nil
}

func loadRules(p string) (RuleSet, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("error loading rules '%s': %w", p, err)
	}
	if !info.IsDir() {
		return parseRules(os.DirFS(filepath.Dir(p)), filepath.Base(p))
	}

	var rs RuleSet
	fsys := os.DirFS(p)
	err = fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !validExt(ruleExts, path.Ext(name)) {
			return nil
		}
		rules, err := parseRules(fsys, name)
		if err != nil {
			return err
		}
		rs = append(rs, rules...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking '%s': %w", p, err)
	}
	return rs, nil
}

func parseRules(fsys fs.FS, name string) (RuleSet, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("error reading rules '%s': %w", name, err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(b, &rs); err != nil {
		return nil, fmt.Errorf("error parsing rules '%s': %w", name, err)
	}
	return rs, nil
}

// Match returns the first rule applying to path. Rules without injections
// never match, so they cannot shadow later ones.
func (rs RuleSet) Match(path string) (Rule, bool) {
	for _, rule := range rs {
		if len(rule.Injections) == 0 {
			continue
		}
		if len(rule.Paths) == 0 || hasAnyPrefix(path, rule.Paths) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Apply runs the injections of the rule matching path against html. Pages
// without a matching rule are returned untouched.
func (rs RuleSet) Apply(path, html string) string {
	rule, ok := rs.Match(path)
	if !ok {
		return html
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("WARN: Could not parse HTML for injection: %v", err)
		return html
	}

	for _, injection := range rule.Injections {
		sel := doc.Find(injection.Position)
		if injection.Replace != "" {
			sel.ReplaceWithHtml(injection.Replace)
			continue
		}
		if injection.Append != "" {
			sel.AppendHtml(injection.Append)
		}
		if injection.Prepend != "" {
			sel.PrependHtml(injection.Prepend)
		}
	}

	out, err := doc.Html()
	if err != nil {
		log.Printf("WARN: Could not render HTML after injection: %v", err)
		return html
	}
	return out
}

func (rs RuleSet) Count() int {
	return len(rs)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
