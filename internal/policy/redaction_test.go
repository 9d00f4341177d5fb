package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactPII(t *testing.T) {
	input := "Meu email é tutor@example.com, telefone +55 (11) 98765-4321 e cartão 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	assert.True(t, changed)
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		assert.Contains(t, out, marker)
	}
	assert.NotContains(t, out, "tutor@example.com")
}

func TestRedactCPF(t *testing.T) {
	out := Redact("meu cpf é 123.456.789-09, tem bravecto?")
	assert.Equal(t, "meu cpf é [REDACTED_CPF], tem bravecto?", out)
}

func TestRedactLeavesPlainQuestions(t *testing.T) {
	out, changed := RedactPII("qual o preço da amoxicilina 250mg")
	assert.False(t, changed)
	assert.Equal(t, "qual o preço da amoxicilina 250mg", out)
}
