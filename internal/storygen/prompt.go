package storygen

import (
	"fmt"

	"github.com/night-tales/skazka/internal/models"
)

// wordCounts maps questionnaire length to the minimum word count requested
// from the generation backend.
var wordCounts = map[string]int{
	"short":  250,
	"medium": 550,
	"long":   1000,
}

var lengthLabels = map[string]string{
	"short":  "короткая",
	"medium": "средняя",
	"long":   "длинная",
}

// MinWords returns the minimum word count for a questionnaire length.
// Unknown or unset lengths default to 500.
func MinWords(length string) int {
	if words, ok := wordCounts[length]; ok {
		return words
	}
	return 500
}

// BuildPrompt renders the fixed generation prompt from questionnaire answers.
// The template is deterministic: identical answers produce identical prompts.
func BuildPrompt(answers models.Answers) string {
	words := MinWords(answers.Length)
	label, ok := lengthLabels[answers.Length]
	if !ok {
		label = "короткая"
	}
	return fmt.Sprintf(
		"Придумай %s сказку на ночь для возраста: %s. "+
			"Главный герой: %s. Место действия: %s. "+
			"Настроение: %s. Сделай сказку интересной, доброй и подходящей для сна. "+
			"Длина сказки должна быть не менее %d слов. "+
			"Не используй символы разметки или HTML, только текст сказки.",
		label, answers.Age, answers.Hero, answers.Place, answers.Mood, words,
	)
}

// BuildCoverPrompt renders the illustration prompt for the story cover,
// built from the answers alone (the story text does not exist yet).
func BuildCoverPrompt(answers models.Answers) string {
	return fmt.Sprintf(
		"Добрая детская иллюстрация к сказке на ночь. Главный герой: %s. Место действия: %s. Настроение: %s. Мягкие цвета, сказочный стиль.",
		answers.Hero, answers.Place, answers.Mood,
	)
}

// BuildChunkPrompt renders the illustration prompt for one narrative chunk,
// keyed off the chunk's closing sentences.
func BuildChunkPrompt(tail string) string {
	return fmt.Sprintf(
		"Добрая детская иллюстрация к фрагменту сказки: %s Мягкие цвета, сказочный стиль, без текста на картинке.",
		tail,
	)
}
