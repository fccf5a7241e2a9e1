package services

import (
	"crypto/rand"
	"fmt"
	"strings"

	"dealhub/internal/config"
)

// CodeGenerator производит человекочитаемые коды купонов вида PREFIX-XXXXXX.
// Коды вводятся вручную в точке продаж, поэтому формат короткий и алфавит не
// содержит похожих символов. Уникальность гарантирует не генератор, а
// хранилище: при коллизии вызывающая сторона генерирует код заново.
type CodeGenerator struct {
	prefix       string
	suffixLength int
	alphabet     string
}

// NewCodeGenerator создаёт генератор с форматом из конфигурации.
func NewCodeGenerator(cfg *config.CouponConfig) *CodeGenerator {
	prefix := cfg.CodePrefix
	if prefix == "" {
		prefix = "DEAL"
	}
	suffixLength := cfg.CodeSuffixLength
	if suffixLength <= 0 {
		suffixLength = 6
	}
	alphabet := cfg.CodeAlphabet
	if alphabet == "" {
		alphabet = config.DefaultCodeAlphabet
	}

	return &CodeGenerator{
		prefix:       prefix,
		suffixLength: suffixLength,
		alphabet:     alphabet,
	}
}

// Generate возвращает новый код купона.
func (g *CodeGenerator) Generate() (string, error) {
	buf := make([]byte, g.suffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(g.prefix)
	sb.WriteByte('-')
	for _, b := range buf {
		sb.WriteByte(g.alphabet[int(b)%len(g.alphabet)])
	}

	return sb.String(), nil
}

// Matches проверяет, соответствует ли строка формату кода.
func (g *CodeGenerator) Matches(code string) bool {
	want := len(g.prefix) + 1 + g.suffixLength
	if len(code) != want {
		return false
	}
	if !strings.HasPrefix(code, g.prefix+"-") {
		return false
	}
	for _, r := range code[len(g.prefix)+1:] {
		if !strings.ContainsRune(g.alphabet, r) {
			return false
		}
	}
	return true
}
