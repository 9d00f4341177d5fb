// Package extract pulls a medication name out of a free-text question.
//
// Extraction is heuristic: each context owns an ordered list of phrase rules,
// and when none matches the last non stop-word token wins. A sentence naming
// several medications yields a single best-effort guess.
package extract

import (
	"regexp"
	"strings"

	"github.com/antoniostano/bolota/internal/normalize"
)

// Context selects which rule list applies.
type Context string

const (
	ContextInfo         Context = "info"
	ContextAvailability Context = "availability"
)

// Rule captures the phrase trailing a known question shape. Pattern runs on
// normalized text and must expose the candidate as its first group.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Match returns the raw captured phrase.
func (r Rule) Match(normalized string) (string, bool) {
	m := r.Pattern.FindStringSubmatch(normalized)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

var defaultInfoRules = []Rule{
	{Name: "indications", Pattern: regexp.MustCompile(`\bindicac(?:ao|oes) de uso\s+(.+)$`)},
	{Name: "what_for", Pattern: regexp.MustCompile(`\bpara que serve\s+(.+)$`)},
	{Name: "what_is", Pattern: regexp.MustCompile(`\bo que (?:e|eh)\s+(.+)$`)},
	{Name: "tell_about", Pattern: regexp.MustCompile(`\b(?:fale|falar|saber|sabe)\s+sobre\s+(.+)$`)},
	{Name: "about", Pattern: regexp.MustCompile(`\bsobre\s+(.+)$`)},
	{Name: "information", Pattern: regexp.MustCompile(`\binformac(?:ao|oes)\s+(.+)$`)},
}

var defaultAvailabilityRules = []Rule{
	{Name: "stock", Pattern: regexp.MustCompile(`\bestoque\s+(.+)$`)},
	{Name: "price", Pattern: regexp.MustCompile(`\bprecos?\s+(.+)$`)},
	{Name: "value", Pattern: regexp.MustCompile(`\bvalor\s+(.+)$`)},
	{Name: "how_much", Pattern: regexp.MustCompile(`\bquanto (?:custa|e|eh|sai)\s+(.+)$`)},
	{Name: "have_available", Pattern: regexp.MustCompile(`\btem\s+(.+?)\s+(?:disponivel|ai)\b`)},
	{Name: "availability", Pattern: regexp.MustCompile(`\bdisponibilidade\s+(.+)$`)},
}

// stopWords holds connectives, pronouns, generic request verbs and the
// request vocabulary of both contexts, all in normalized form.
var stopWords = toSet(
	// articles, prepositions, connectives
	"a", "o", "os", "as", "um", "uma", "uns", "umas", "de", "do", "da", "dos", "das",
	"e", "eh", "ou", "em", "no", "na", "nos", "nas", "ao", "aos", "para", "pra", "pro",
	"por", "pelo", "pela", "com", "sem", "que", "se", "mas", "entao", "tambem",
	// question words
	"qual", "quais", "quanto", "quanta", "quantos", "quantas", "como", "onde", "quando",
	// pronouns and demonstratives
	"me", "mim", "eu", "voce", "vc", "voces", "ele", "ela", "eles", "elas", "nos",
	"isso", "isto", "esse", "essa", "este", "esta", "aquilo", "aquele", "aquela",
	"disso", "disto", "desse", "dessa", "deste", "desta", "dele", "dela", "daquele", "daquela",
	"meu", "minha", "seu", "sua", "teu", "tua",
	// generic request verbs and politeness
	"fale", "falar", "fala", "diga", "dizer", "conte", "contar", "explique", "explicar",
	"sobre", "saber", "sabe", "sei", "conhecer", "quero", "queria", "gostaria", "poderia",
	"pode", "preciso", "precisava", "ver", "consultar", "informar", "mostrar", "mostre",
	"favor", "ok", "sim", "nao", "obrigado", "obrigada", "oi", "ola",
	"mais", "muito", "hoje", "agora", "ai", "aqui", "la", "ja", "ainda", "ser", "claro", "yes",
	// info vocabulary
	"informacao", "informacoes", "serve", "uso", "usar", "indicacao", "indicacoes",
	"medicamento", "medicamentos", "remedio", "remedios", "produto", "produtos",
	// availability vocabulary
	"preco", "precos", "valor", "valores", "custa", "custo", "estoque", "estoques",
	"disponivel", "disponiveis", "disponibilidade", "tem", "ter", "ha", "sai",
)

// Extractor resolves medication names for the info and availability
// question shapes.
type Extractor struct {
	info         []Rule
	availability []Rule
	stop         map[string]struct{}
}

// New returns an Extractor with the built-in rule lists.
func New() *Extractor {
	return NewWithRules(defaultInfoRules, defaultAvailabilityRules)
}

// NewWithRules returns an Extractor that tries the given rules in order.
func NewWithRules(info, availability []Rule) *Extractor {
	return &Extractor{
		info:         append([]Rule(nil), info...),
		availability: append([]Rule(nil), availability...),
		stop:         stopWords,
	}
}

// Rules returns a copy of the ordered rule list for ctx.
func (e *Extractor) Rules(ctx Context) []Rule {
	switch ctx {
	case ContextAvailability:
		return append([]Rule(nil), e.availability...)
	default:
		return append([]Rule(nil), e.info...)
	}
}

// FromInfo extracts the medication from questions such as
// "me fale sobre amoxicilina" or "para que serve o bravecto".
func (e *Extractor) FromInfo(message string) (string, bool) {
	return e.extract(message, e.info)
}

// FromAvailability extracts the medication from questions such as
// "qual o preço da amoxicilina" or "tem bravecto disponível".
func (e *Extractor) FromAvailability(message string) (string, bool) {
	return e.extract(message, e.availability)
}

// From dispatches on ctx.
func (e *Extractor) From(ctx Context, message string) (string, bool) {
	if ctx == ContextAvailability {
		return e.FromAvailability(message)
	}
	return e.FromInfo(message)
}

func (e *Extractor) extract(message string, rules []Rule) (string, bool) {
	normalized := normalize.Text(message)
	if normalized == "" {
		return "", false
	}

	for _, rule := range rules {
		phrase, ok := rule.Match(normalized)
		if !ok {
			continue
		}
		if name := e.trimStopWords(phrase); name != "" {
			return name, true
		}
		// A rule that only captured filler ("preco disso") settles the
		// question shape; the fallback would pick the same filler.
		return "", false
	}

	tokens := strings.Split(normalized, " ")
	for i := len(tokens) - 1; i >= 0; i-- {
		if !e.isStopWord(tokens[i]) {
			return Clean(tokens[i]), true
		}
	}
	return "", false
}

func (e *Extractor) trimStopWords(phrase string) string {
	tokens := strings.Fields(phrase)
	start, end := 0, len(tokens)
	for start < end && e.isStopWord(tokens[start]) {
		start++
	}
	for end > start && e.isStopWord(tokens[end-1]) {
		end--
	}
	return Clean(strings.Join(tokens[start:end], " "))
}

func (e *Extractor) isStopWord(token string) bool {
	_, ok := e.stop[token]
	return ok
}

// Clean strips punctuation, collapses whitespace and trims a candidate name.
func Clean(name string) string {
	return normalize.Text(name)
}

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
