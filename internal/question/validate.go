package question

import (
	"fmt"
	"strings"
)

// Issue captures a validation problem in a question dataset.
type Issue struct {
	Field   string
	Message string
}

// ValidationError reports one or more validation issues.
type ValidationError struct {
	Issues []Issue
}

// Error returns a readable message for validation failures.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return fmt.Sprintf("question dataset validation failed: %s", strings.Join(parts, "; "))
}

type issueCollector struct {
	issues []Issue
}

func (collector *issueCollector) add(field, message string) {
	collector.issues = append(collector.issues, Issue{Field: field, Message: message})
}

func (collector *issueCollector) result() error {
	if len(collector.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: collector.issues}
}

// Normalize trims whitespace and validates a dataset. The returned dataset
// is a copy; callers treat it as immutable.
func Normalize(dataset Dataset) (Dataset, error) {
	collector := &issueCollector{}
	if dataset.Version == 0 {
		collector.add("version", "is required")
	} else if dataset.Version != 1 {
		collector.add("version", fmt.Sprintf("unsupported version %d", dataset.Version))
	}
	if len(dataset.Questions) == 0 {
		collector.add("questions", "must include at least one entry")
	}

	questions := make([]Question, len(dataset.Questions))
	seenIDs := map[string]struct{}{}
	for i, question := range dataset.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		question.ID = strings.TrimSpace(question.ID)
		if question.ID == "" {
			collector.add(prefix+".id", "is required")
		} else if _, exists := seenIDs[question.ID]; exists {
			collector.add(prefix+".id", fmt.Sprintf("duplicate id %q", question.ID))
		} else {
			seenIDs[question.ID] = struct{}{}
		}

		question.Text = strings.TrimSpace(question.Text)
		if question.Text == "" {
			collector.add(prefix+".question", "is required")
		}
		question.Answer = strings.TrimSpace(question.Answer)
		if question.Answer == "" {
			collector.add(prefix+".answer", "is required")
		}
		question.Category = strings.TrimSpace(question.Category)
		question.Notes = strings.TrimSpace(question.Notes)
		question.Difficulty = strings.ToLower(strings.TrimSpace(question.Difficulty))
		switch question.Difficulty {
		case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
		default:
			collector.add(prefix+".difficulty", fmt.Sprintf("unknown difficulty %q (want easy, medium or hard)", question.Difficulty))
		}
		questions[i] = question
	}

	if err := collector.result(); err != nil {
		return Dataset{}, err
	}
	return Dataset{Version: dataset.Version, Questions: questions}, nil
}
