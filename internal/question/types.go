package question

// Dataset is the question file loaded from JSON or YAML.
type Dataset struct {
	Version   int        `json:"version" yaml:"version"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Question is one benchmark question with its reference answer.
type Question struct {
	ID         string `json:"id" yaml:"id"`
	Text       string `json:"question" yaml:"question"`
	Category   string `json:"category,omitempty" yaml:"category"`
	Difficulty string `json:"difficulty,omitempty" yaml:"difficulty"`
	Answer     string `json:"answer" yaml:"answer"`
	Notes      string `json:"notes,omitempty" yaml:"notes"`
}

// Difficulty levels accepted in datasets.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Lookup returns the question with id.
func (d Dataset) Lookup(id string) (Question, bool) {
	for _, question := range d.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Filter returns the questions matching every non-empty criterion. ids
// restricts by id; category and difficulty match exactly.
func (d Dataset) Filter(ids []string, category, difficulty string) []Question {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []Question
	for _, question := range d.Questions {
		if len(wanted) > 0 && !wanted[question.ID] {
			continue
		}
		if category != "" && question.Category != category {
			continue
		}
		if difficulty != "" && question.Difficulty != difficulty {
			continue
		}
		out = append(out, question)
	}
	return out
}
