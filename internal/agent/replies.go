package agent

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/antoniostano/bolota/internal/articles"
	"github.com/antoniostano/bolota/internal/inventory"
)

const (
	// Disclaimer closes every medication reply.
	Disclaimer = "⚠️ Uso somente com prescrição veterinária."

	replyGreeting = "Olá! Eu sou a Bolota, assistente de medicamentos veterinários. " +
		"Posso falar sobre um medicamento ou consultar preço e estoque."
	replyGoodbye = "Até mais! Se precisar, é só chamar."
	replyHelp    = "Posso ajudar com medicamentos veterinários. Pergunte, por exemplo: " +
		"'Me fale sobre Amoxicilina' ou 'Qual o preço do Bravecto?'."
	replyNegate  = "Tudo bem. Se quiser saber de outro medicamento, é só perguntar."
	replyAskName = "Qual medicamento você deseja consultar (ex: Amoxicilina)?"
	replyUnknown = "Não entendi. Posso falar sobre um medicamento ou consultar preço e estoque. " +
		"Pergunte, por exemplo: 'Me fale sobre Amoxicilina'."

	notAvailable   = "não disponível"
	summaryMaxRune = 300
	maxAuthors     = 3
)

// branch labels the reply template for metrics and logs.
type branch string

const (
	branchGreeting            branch = "greeting"
	branchGoodbye             branch = "goodbye"
	branchHelp                branch = "help"
	branchNegate              branch = "negate"
	branchAskName             branch = "ask_name"
	branchUnknown             branch = "unknown"
	branchInfo                branch = "info"
	branchInfoEmpty           branch = "info_empty"
	branchInfoAskName         branch = "info_ask_name"
	branchAvailabilityAsk     branch = "availability_ask_name"
	branchAvailabilityNone    branch = "availability_not_found"
	branchAvailabilityOut     branch = "availability_out_of_stock"
	branchAvailabilityInStock branch = "availability_in_stock"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

func withDisclaimer(text string) string {
	return text + "\n" + Disclaimer
}

func infoReply(name string, found []articles.Article) string {
	var b strings.Builder
	if len(found) == 0 {
		fmt.Fprintf(&b, "Não encontrei estudos recentes sobre %s.\n", name)
	} else {
		fmt.Fprintf(&b, "A %s é um medicamento veterinário. Aqui estão alguns estudos recentes:\n", name)
		for i, a := range found {
			fmt.Fprintf(&b, "\n%d. %s\n", i+1, orNotAvailable(a.Title))
			fmt.Fprintf(&b, "Revista: %s\n", orNotAvailable(a.Journal))
			fmt.Fprintf(&b, "Autores: %s\n", orNotAvailable(formatAuthors(a.Authors)))
			fmt.Fprintf(&b, "Resumo: %s\n", orNotAvailable(truncate(a.Summary, summaryMaxRune)))
			fmt.Fprintf(&b, "Link: %s\n", orNotAvailable(a.Link))
		}
		b.WriteString("\n")
	}
	b.WriteString(Disclaimer)
	b.WriteString("\nDeseja ver preço e estoque?")
	return b.String()
}

func askNameReply() string {
	return withDisclaimer(replyAskName)
}

func notFoundReply(name string) string {
	return withDisclaimer(fmt.Sprintf("Não encontrei %s no inventário local.", name))
}

func outOfStockReply(item inventory.Item) string {
	return withDisclaimer(fmt.Sprintf(
		"O produto %s está cadastrado, mas está sem estoque no momento.\nPreço: %s",
		item.Description, formatPrice(item.Price),
	))
}

func inStockReply(item inventory.Item) string {
	return withDisclaimer(fmt.Sprintf(
		"Produto: %s\nPreço: %s\nEstoque: %d unidades",
		item.Description, formatPrice(item.Price), item.Stock,
	))
}

// formatPrice renders reais with the Brazilian decimal comma.
func formatPrice(v float64) string {
	return ptBR.Sprintf("R$ %.2f", v)
}

func formatAuthors(authors []string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	if len(names) > maxAuthors {
		return strings.Join(names[:maxAuthors], ", ") + " et al."
	}
	return strings.Join(names, ", ")
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
