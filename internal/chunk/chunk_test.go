package chunk

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitSentences_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "  \n\t ",
			want: nil,
		},
		{
			name: "single sentence with dot",
			text: "Жил-был зайчик.",
			want: []string{"Жил-был зайчик."},
		},
		{
			name: "mixed terminators",
			text: "Кто там? Это я! Заходи.",
			want: []string{"Кто там?", "Это я!", "Заходи."},
		},
		{
			name: "trailing text without terminator",
			text: "Первое предложение. и хвостик без точки",
			want: []string{"Первое предложение.", "и хвостик без точки"},
		},
		{
			name: "closing quote stays with sentence",
			text: `Он сказал "спокойной ночи". Потом уснул.`,
			want: []string{`Он сказал "спокойной ночи".`, "Потом уснул."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sentences %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// makeStory builds a story of n numbered sentences.
func makeStory(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Предложение номер %d. ", i+1)
	}
	return b.String()
}

func TestSplit_ChunkCounts(t *testing.T) {
	tests := []struct {
		sentences  int
		wantChunks int
	}{
		{0, 0},
		{1, 1},
		{9, 1},
		{10, 1},
		{11, 2},
		{25, 3},
		{30, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_sentences", tt.sentences), func(t *testing.T) {
			chunks := Split(makeStory(tt.sentences), 10)
			if len(chunks) != tt.wantChunks {
				t.Fatalf("got %d chunks, want %d", len(chunks), tt.wantChunks)
			}
			total := 0
			for i, c := range chunks {
				if c.Sentences > 10 {
					t.Errorf("chunk %d has %d sentences, want <= 10", i, c.Sentences)
				}
				if c.Text == "" {
					t.Errorf("chunk %d is empty", i)
				}
				total += c.Sentences
			}
			if total != tt.sentences {
				t.Errorf("chunks cover %d sentences, want %d", total, tt.sentences)
			}
		})
	}
}

func TestSplit_ShortStoryIsOneChunk(t *testing.T) {
	// A ~300 word story of fewer than 10 sentences stays in one chunk.
	story := "Жил-был зайчик в волшебном замке. " + strings.Repeat("Он прыгал по залам и смотрел в окна на звёзды над лесом каждую ночь до самого рассвета. ", 8)
	chunks := Split(story, 10)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestTail_LastSentences(t *testing.T) {
	text := "Один. Два. Три. Четыре."
	if got := Tail(text, 2); got != "Три. Четыре." {
		t.Errorf("Tail = %q, want %q", got, "Три. Четыре.")
	}
	if got := Tail("Одно предложение.", 2); got != "Одно предложение." {
		t.Errorf("Tail on short text = %q", got)
	}
	if got := Tail("", 2); got != "" {
		t.Errorf("Tail on empty text = %q, want empty", got)
	}
}

func TestBisect_SentenceBoundary(t *testing.T) {
	text := "Первая часть истории тут. Вторая часть истории там и она заметно длиннее первой."
	a, b := Bisect(text)
	if !strings.HasSuffix(a, ".") {
		t.Errorf("first half %q does not end at a sentence boundary", a)
	}
	if a+" "+b != text {
		t.Errorf("halves do not reassemble: %q + %q", a, b)
	}
}

func TestBisect_WordBoundaryFallback(t *testing.T) {
	text := "слова без единой точки просто длинный поток слов для проверки деления"
	a, b := Bisect(text)
	if a == "" || b == "" {
		t.Fatalf("empty half: %q / %q", a, b)
	}
	// No mid-word cut: reassembly must preserve all words.
	if strings.Join(strings.Fields(a+" "+b), " ") != text {
		t.Errorf("word set changed after bisect: %q / %q", a, b)
	}
}

func TestBisect_NoBoundaries(t *testing.T) {
	text := strings.Repeat("ж", 51) // multibyte runes, no dots or spaces
	a, b := Bisect(text)
	if a+b != text {
		t.Errorf("halves corrupt runes: %q + %q", a, b)
	}
}
