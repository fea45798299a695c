package assistant

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Rule escalates a conversation to a person when any keyword appears in a user message.
type Rule struct {
	Name     string   `yaml:"name"`
	Reason   string   `yaml:"reason"`
	Keywords []string `yaml:"keywords"`
}

// Match is the first rule that fired for a message.
type Match struct {
	Rule    string
	Reason  string
	Keyword string
}

// DefaultRules covers explicit requests for a person, sensitive HR topics and urgency.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "human_request",
			Reason: "The employee asked to talk to a person.",
			Keywords: []string{
				"hablar con un humano", "hablar con una persona", "hablar con alguien",
				"persona real", "agente humano", "quiero un humano", "operador",
				"recursos humanos directamente",
				"talk to a human", "speak to a human", "talk to a person", "speak to someone",
				"real person", "human agent", "live agent",
			},
		},
		{
			Name:   "sensitive_topic",
			Reason: "The conversation touches a sensitive HR topic.",
			Keywords: []string{
				"acoso", "acoso laboral", "acoso sexual", "discriminacion", "denuncia",
				"despido", "represalia", "salud mental", "baja por depresion", "violencia",
				"harassment", "bullying", "discrimination", "dismissal", "fired",
				"retaliation", "mental health", "whistleblower",
			},
		},
		{
			Name:   "urgent",
			Reason: "The employee reported an urgent matter.",
			Keywords: []string{"urgente", "emergencia", "urgent", "emergency"},
		},
	}
}

// LoadRules reads a YAML list of rules. An empty path yields the defaults.
func LoadRules(path string) ([]Rule, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read escalation rules: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse escalation rules: %w", err)
	}
	for i, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("escalation rule %d has no name", i)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("escalation rule %q has no keywords", r.Name)
		}
	}
	return rules, nil
}

// Detector evaluates escalation rules against user messages.
type Detector struct {
	rules []compiledRule
}

type compiledRule struct {
	rule     Rule
	keywords [][]string
}

func NewDetector(rules []Rule) *Detector {
	d := &Detector{}
	for _, r := range rules {
		cr := compiledRule{rule: r}
		for _, kw := range r.Keywords {
			words := tokenize(kw)
			if len(words) > 0 {
				cr.keywords = append(cr.keywords, words)
			}
		}
		d.rules = append(d.rules, cr)
	}
	return d
}

// Detect returns the first matching rule, in rule order.
func (d *Detector) Detect(message string) (Match, bool) {
	words := tokenize(message)
	if len(words) == 0 {
		return Match{}, false
	}
	for _, cr := range d.rules {
		for _, kw := range cr.keywords {
			if containsPhrase(words, kw) {
				return Match{
					Rule:    cr.rule.Name,
					Reason:  cr.rule.Reason,
					Keyword: strings.Join(kw, " "),
				}, true
			}
		}
	}
	return Match{}, false
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j := range phrase {
			if words[i+j] != phrase[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

// Fold lower-cases s and strips diacritics so "Discriminación" matches "discriminacion".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
