package router

import (
	"fmt"
	"regexp"
	"strings"
)

// identityPatterns match "who created you" style questions across the
// languages the product ships in. Matching any of them bypasses providers
// entirely so branding answers stay deterministic.
var identityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwho\s+(made|created|built|developed|designed)\s+you\b`),
	regexp.MustCompile(`(?i)\bwho\s+are\s+you\b`),
	regexp.MustCompile(`(?i)\bwhat\s+(model|ai|llm)\s+are\s+you\b`),
	regexp.MustCompile(`(?i)\bare\s+you\s+(chatgpt|gpt|claude|gemini|bard)\b`),
	regexp.MustCompile(`谁(创造|开发|制作|训练)(了)?你`),
	regexp.MustCompile(`你是(谁|什么模型|哪个模型)`),
	regexp.MustCompile(`(?i)quién\s+te\s+(creó|hizo|desarrolló)`),
	regexp.MustCompile(`(?i)qui\s+t'a\s+(créé|fait|développé)`),
	regexp.MustCompile(`誰が(あなた|君)を(作った|開発した)`),
}

// IsIdentityQuestion reports whether the text asks about the assistant's
// identity or origin.
func IsIdentityQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, p := range identityPatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// IdentityAnswer renders the fixed branding response.
func IdentityAnswer(brandName string) string {
	if strings.TrimSpace(brandName) == "" {
		brandName = "GenStudio"
	}
	return fmt.Sprintf("I am the %s assistant, built by the %s team to help you create images, answer questions and run research. How can I help you today?", brandName, brandName)
}
