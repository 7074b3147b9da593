package decision

import (
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/jonreiter/govader"
)

// SentimentScores follows the VADER convention: neg, neu and pos are
// proportions of the text, compound is the normalised overall polarity.
type SentimentScores struct {
	Neg      float64 `json:"neg"`
	Neu      float64 `json:"neu"`
	Pos      float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

var analyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// PolarityScores scores text with the full VADER lexicon and rules.
// Text without any word characters scores zero on every axis.
func PolarityScores(text string) SentimentScores {
	if !strings.ContainsFunc(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) {
		return SentimentScores{}
	}
	s := analyzer().PolarityScores(text)
	return SentimentScores{
		Neg:      round3(s.Negative),
		Neu:      round3(s.Neutral),
		Pos:      round3(s.Positive),
		Compound: round4(s.Compound),
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
