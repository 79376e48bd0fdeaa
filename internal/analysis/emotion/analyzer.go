package emotion

import "strings"

// Label is the mood tag attached to user messages.
type Label string

const (
	Neutral    Label = "neutral"
	Positive   Label = "positive"
	Stressed   Label = "stressed"
	Tired      Label = "tired"
	Frustrated Label = "frustrated"
	Anxious    Label = "anxious"
	Low        Label = "low"
)

// Decision is the outcome of scoring one utterance.
type Decision struct {
	Mood  Label `json:"mood"`
	Score int   `json:"score"`
}

var keywordBuckets = map[Label][]string{
	Positive: {
		"great", "good", "happy", "glad", "awesome", "excited", "fine", "thanks", "thank you",
		"love", "enjoy", "productive", "relaxed", "better", "amazing",
	},
	Stressed: {
		"stress", "stressed", "pressure", "overwhelmed", "swamped", "deadline", "too much",
		"overloaded", "workload", "burnout", "burned out", "burnt out",
	},
	Tired: {
		"tired", "exhausted", "sleepy", "drained", "no energy", "worn out", "fatigue", "can't sleep",
	},
	Frustrated: {
		"angry", "annoyed", "frustrated", "furious", "fed up", "unfair", "hate", "mad", "irritated",
	},
	Anxious: {
		"anxious", "worried", "nervous", "scared", "afraid", "panic", "uneasy", "uncertain",
	},
	Low: {
		"sad", "down", "lonely", "unhappy", "depressed", "hopeless", "upset", "unmotivated", "cry",
	},
}

// Ties resolve towards the earlier label so tagging stays deterministic.
var labelOrder = []Label{Stressed, Anxious, Frustrated, Low, Tired, Positive}

// Analyzer tags utterances with a mood label.
type Analyzer interface {
	Analyze(text string) Decision
}

// KeywordAnalyzer is the heuristic Analyzer used by the chat simulator.
type KeywordAnalyzer struct{}

// Analyze implements Analyzer.
func (KeywordAnalyzer) Analyze(text string) Decision {
	return Analyze(text)
}

// Analyze scores text against the keyword buckets and returns the dominant mood.
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Mood: Neutral}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if containsWord(normalized, word) {
				scores[label] += 3
			}
		}
	}

	// "!!" reads as agitation unless the message is already clearly positive.
	if exclamations := strings.Count(text, "!"); exclamations > 1 && scores[Positive] == 0 {
		scores[Frustrated] += exclamations
	}

	best, bestScore := Neutral, 0
	for _, label := range labelOrder {
		if s := scores[label]; s > bestScore {
			best, bestScore = label, s
		}
	}
	return Decision{Mood: best, Score: bestScore}
}

// Labels lists every non-neutral mood in tie-break order.
func Labels() []Label {
	return append([]Label(nil), labelOrder...)
}

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		end := idx + len(word)
		if boundary(text, idx-1) && boundary(text, end) {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += next + 1
	}
	return false
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}
