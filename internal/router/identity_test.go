package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsIdentityQuestion(t *testing.T) {
	positives := []string{
		"Who created you?",
		"who MADE you",
		"Who are you exactly?",
		"What model are you?",
		"Are you ChatGPT?",
		"are you claude or something else",
		"谁创造了你",
		"你是谁",
		"你是什么模型",
		"¿Quién te creó?",
		"Qui t'a créé ?",
		"誰があなたを作ったの",
	}
	for _, text := range positives {
		assert.True(t, IsIdentityQuestion(text), "expected identity match: %q", text)
	}

	negatives := []string{
		"Who created the Eiffel Tower?",
		"What is the best model of car?",
		"Generate an image of a cat",
		"",
		"   ",
	}
	for _, text := range negatives {
		assert.False(t, IsIdentityQuestion(text), "unexpected identity match: %q", text)
	}
}

func TestIdentityAnswer(t *testing.T) {
	assert.Contains(t, IdentityAnswer("Acme Studio"), "Acme Studio")
	assert.Contains(t, IdentityAnswer(""), "GenStudio")
	// Same input, same answer.
	assert.Equal(t, IdentityAnswer("Acme"), IdentityAnswer("Acme"))
}
