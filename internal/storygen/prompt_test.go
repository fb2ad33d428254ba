package storygen

import (
	"strings"
	"testing"

	"github.com/night-tales/skazka/internal/models"
)

func TestMinWords(t *testing.T) {
	tests := []struct {
		length string
		want   int
	}{
		{"short", 250},
		{"medium", 550},
		{"long", 1000},
		{"", 500},
		{"unknown", 500},
	}

	for _, tt := range tests {
		t.Run("length_"+tt.length, func(t *testing.T) {
			if got := MinWords(tt.length); got != tt.want {
				t.Errorf("MinWords(%q) = %d, want %d", tt.length, got, tt.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	answers := models.Answers{
		Hero:   "зайчик",
		Place:  "волшебный замок",
		Mood:   "весёлое",
		Age:    "ребёнок",
		Length: "short",
	}

	prompt := BuildPrompt(answers)

	for _, want := range []string{
		"зайчик",
		"волшебный замок",
		"весёлое",
		"ребёнок",
		"не менее 250 слов",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\nprompt: %s", want, prompt)
		}
	}

	// Same answers must produce the same prompt.
	if again := BuildPrompt(answers); again != prompt {
		t.Error("BuildPrompt is not deterministic for identical answers")
	}
}

func TestBuildPromptDefaultLength(t *testing.T) {
	answers := models.Answers{
		Hero:  "котёнок",
		Place: "лес",
		Mood:  "спокойное",
		Age:   "малыш",
	}

	prompt := BuildPrompt(answers)
	if !strings.Contains(prompt, "не менее 500 слов") {
		t.Errorf("prompt for unset length should request 500 words, got: %s", prompt)
	}
}

func TestBuildCoverPrompt(t *testing.T) {
	answers := models.Answers{
		Hero:  "зайчик",
		Place: "волшебный замок",
		Mood:  "весёлое",
	}

	prompt := BuildCoverPrompt(answers)
	if !strings.Contains(prompt, "зайчик") || !strings.Contains(prompt, "волшебный замок") {
		t.Errorf("cover prompt missing hero or place: %s", prompt)
	}
}

func TestBuildChunkPrompt(t *testing.T) {
	tail := "Зайчик открыл дверь. За дверью сиял свет."

	prompt := BuildChunkPrompt(tail)
	if !strings.Contains(prompt, tail) {
		t.Errorf("chunk prompt missing chunk tail: %s", prompt)
	}
}
