package runner

import "toolbench/internal/score"

// summarize aggregates question results per variant, in variant order.
func summarize(variants []string, questions []QuestionResult) []VariantSummary {
	summaries := make([]VariantSummary, 0, len(variants))
	for _, variant := range variants {
		summary := VariantSummary{Variant: variant}
		var scores []score.Result
		var latency int64
		for _, question := range questions {
			for _, run := range question.Runs {
				if run.Variant != variant {
					continue
				}
				summary.Questions++
				summary.TokensTotal += run.Tokens.Total
				summary.ToolCalls += run.ToolCalls
				if !run.Succeeded() {
					summary.Failed++
					if run.Status == StatusStepLimit {
						summary.StepLimited++
					}
					continue
				}
				summary.Succeeded++
				latency += run.LatencyMs
				if run.Score != nil {
					scores = append(scores, *run.Score)
					if run.Score.Scored() {
						summary.Scored++
					}
				}
			}
		}
		if mean, ok := score.Mean(scores); ok {
			summary.MeanScore = &mean
		}
		if summary.Succeeded > 0 {
			summary.MeanLatencyMs = float64(latency) / float64(summary.Succeeded)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
