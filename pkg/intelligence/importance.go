package intelligence

import (
	"math"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// ImportanceEvaluator assigns an intrinsic relevance score to entries created
// without one.
//
// It is rule-based: a baseline per entry type plus keyword heuristics over the
// summary and input. The evaluator considers multiple criteria:
//   - Novelty: Whether the content contains new information
//   - Emotional impact: Emotional significance of the content
//   - Actionable: Whether the content requires action
//   - Factual: Whether the content contains factual information
//   - Personal: Whether the content is personal to the user
//
// Example usage:
//
//	evaluator := NewImportanceEvaluator()
//	score := evaluator.Evaluate(entry)
//	// score will be between 0.0 and 1.0
type ImportanceEvaluator struct {
	criteria []criterion
	baseline map[storage.EntryType]float64
}

type criterion struct {
	name     string
	weight   float64
	keywords []string
	step     float64
}

// NewImportanceEvaluator creates an evaluator with the default weights:
//   - novelty: 0.2
//   - emotional_impact: 0.15
//   - actionable: 0.15
//   - factual: 0.1
//   - personal: 0.1
func NewImportanceEvaluator() *ImportanceEvaluator {
	return &ImportanceEvaluator{
		criteria: []criterion{
			{"novelty", 0.2, []string{"new", "first", "never", "unprecedented", "unique", "changed"}, 0.35},
			{"emotional_impact", 0.15, []string{
				"happy", "sad", "angry", "excited", "worried", "scared",
				"love", "hate", "fear", "joy", "frustrated", "upset",
			}, 0.35},
			{"actionable", 0.15, []string{
				"must", "need", "needs", "should", "fix", "solve", "deadline",
				"implement", "remember", "complete", "todo", "schedule",
			}, 0.3},
			{"factual", 0.1, []string{
				"fact", "data", "statistic", "research", "study",
				"evidence", "proof", "confirmed", "verified",
			}, 0.35},
			{"personal", 0.1, []string{
				"i", "me", "my", "mine", "myself", "prefer", "prefers",
				"personal", "private", "birthday", "allergic",
			}, 0.25},
		},
		baseline: map[storage.EntryType]float64{
			storage.TypeLog:             0.2,
			storage.TypeSummary:         0.3,
			storage.TypePattern:         0.35,
			storage.TypeCorrection:      0.5,
			storage.TypeGoal:            0.45,
			storage.TypeGoalProgress:    0.3,
			storage.TypeSessionSummary:  0.3,
			storage.TypeSessionDecision: 0.4,
		},
	}
}

// Evaluate returns an importance score in [0,1] for the entry.
func (e *ImportanceEvaluator) Evaluate(entry *storage.Entry) float64 {
	score := e.baseline[entry.Type]

	text := words(entry.Summary + " " + entry.Input)
	present := make(map[string]struct{}, len(text))
	for _, w := range text {
		present[w] = struct{}{}
	}

	for _, c := range e.criteria {
		score += c.weight * c.evaluate(present)
	}

	if len(entry.Tags) > 0 {
		score += 0.05
	}

	return clamp01(score)
}

// Breakdown returns the per-criterion scores for the entry, each in [0,1].
func (e *ImportanceEvaluator) Breakdown(entry *storage.Entry) map[string]float64 {
	present := make(map[string]struct{})
	for _, w := range words(entry.Summary + " " + entry.Input) {
		present[w] = struct{}{}
	}

	breakdown := make(map[string]float64, len(e.criteria))
	for _, c := range e.criteria {
		breakdown[c.name] = c.evaluate(present)
	}
	return breakdown
}

func (c criterion) evaluate(present map[string]struct{}) float64 {
	score := 0.0
	for _, keyword := range c.keywords {
		if _, ok := present[keyword]; ok {
			score += c.step
		}
	}
	return math.Min(score, 1.0)
}
