package intent

import (
	"regexp"
	"strings"

	"github.com/antoniostano/bolota/internal/normalize"
)

// NameFinder reports whether an info question names a medication.
type NameFinder interface {
	FromInfo(message string) (string, bool)
}

// matcher is a short conversational pattern that short-circuits scoring.
type matcher struct {
	intent  Intent
	pattern *regexp.Regexp
}

// priorityMatchers run in order against the normalized message; the first hit
// wins. Greetings open the message, farewells close it.
var priorityMatchers = []matcher{
	{intent: Greetings, pattern: regexp.MustCompile(`^(oi|ola|bom dia|boa tarde|boa noite)\b`)},
	{intent: Goodbye, pattern: regexp.MustCompile(`(tchau|ate mais|valeu|obrigado|brigado)$`)},
	{intent: Help, pattern: regexp.MustCompile(`(ajuda|como funciona|o que voce faz|preciso|saber|o q vc faz)`)},
	{intent: Negate, pattern: regexp.MustCompile(`^(nao|prefiro que nao|deixa pra depois)`)},
	{intent: Confirm, pattern: regexp.MustCompile(`^(sim|claro|ok|pode|yes|isso|quero|por favor)\b`)},
}

const (
	keywordScore = 3
	stemScore    = 1
	stemWidth    = 4

	whatYouKnowPhrase    = "o que voce sabe"
	whatYouKnowMinTokens = 5
	nameOnlyMaxTokens    = 2
)

type scoredCandidate struct {
	intent   Intent
	keywords []string
	stems    []string
}

// Classifier maps an utterance to an Intent. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	candidates []scoredCandidate
	names      NameFinder
}

// NewClassifier builds a Classifier from a validated scoring configuration.
// names backs the ASK_FOR_MED_NAME override for info questions.
func NewClassifier(cfg Config, names NameFinder) *Classifier {
	c := &Classifier{names: names}
	for _, cand := range cfg.Candidates {
		sc := scoredCandidate{intent: cand.Intent}
		for _, kw := range cand.Keywords {
			if n := normalize.Text(kw); n != "" {
				sc.keywords = append(sc.keywords, n)
			}
		}
		for _, st := range cand.Stems {
			if n := normalize.Text(st); n != "" {
				sc.stems = append(sc.stems, n)
			}
		}
		c.candidates = append(c.candidates, sc)
	}
	return c
}

// Detect classifies message. It never fails: blank or unrecognized input is
// UNKNOWN.
func (c *Classifier) Detect(message string) Intent {
	if strings.TrimSpace(message) == "" {
		return Unknown
	}
	norm := normalize.Text(message)
	if norm == "" {
		return Unknown
	}
	tokens := strings.Split(norm, " ")

	for _, m := range priorityMatchers {
		if m.pattern.MatchString(norm) {
			return m.intent
		}
	}

	var best Intent
	if strings.Contains(norm, whatYouKnowPhrase) && len(tokens) >= whatYouKnowMinTokens {
		best = MedicineInfo
	} else {
		best = c.score(tokens)
	}

	switch {
	case best == Unknown && len(tokens) <= nameOnlyMaxTokens:
		return MedicineNameOnly
	case best == MedicineInfo && !c.namesMedication(message):
		return AskForMedName
	default:
		return best
	}
}

// Score returns the points each configured candidate earns for message, in
// evaluation order. Exposed for diagnostics and tests.
func (c *Classifier) Score(message string) map[Intent]int {
	tokens := normalize.Tokens(message)
	out := make(map[Intent]int, len(c.candidates))
	for _, cand := range c.candidates {
		out[cand.intent] = cand.score(tokens)
	}
	return out
}

func (c *Classifier) score(tokens []string) Intent {
	best, bestScore := Unknown, 0
	for _, cand := range c.candidates {
		if s := cand.score(tokens); s > bestScore {
			best, bestScore = cand.intent, s
		}
	}
	return best
}

func (c *Classifier) namesMedication(message string) bool {
	if c.names == nil {
		return true
	}
	_, ok := c.names.FromInfo(message)
	return ok
}

func (sc scoredCandidate) score(tokens []string) int {
	joined := strings.Join(tokens, " ")
	score := 0
	for _, kw := range sc.keywords {
		if strings.Contains(joined, kw) {
			score += keywordScore
			break
		}
	}
	for _, tok := range tokens {
		st := stem(tok)
		for _, s := range sc.stems {
			if strings.HasPrefix(st, s) {
				score += stemScore
				break
			}
		}
	}
	return score
}

// stem truncates a token to its first four runes. Configured stems longer than
// that can never match; the lists are kept as ported.
func stem(token string) string {
	r := []rune(token)
	if len(r) > stemWidth {
		r = r[:stemWidth]
	}
	return string(r)
}
