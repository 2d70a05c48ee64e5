package evolve

import (
	"kolibri-v0/internal/digit"
)

// MaxAssociationDigits bounds the stored digit encoding of a question or
// answer; longer text keeps only the prefix that fits.
const MaxAssociationDigits = 96

// Association is a verbatim question->answer pair taught symbolically. The
// derived hashes double as the numeric example the evolution loop trains
// against, so symbolic and numeric teaching share one fitness signal.
type Association struct {
	Question       string
	Answer         string
	InputHash      int
	OutputHash     int
	QuestionDigits []uint8
	AnswerDigits   []uint8
	Source         string
	Timestamp      uint64
}

func newAssociation(question, answer, source string, timestamp uint64) Association {
	return Association{
		Question:       question,
		Answer:         answer,
		InputHash:      HashText(question),
		OutputHash:     HashText(answer),
		QuestionDigits: boundedDigits(question),
		AnswerDigits:   boundedDigits(answer),
		Source:         source,
		Timestamp:      timestamp,
	}
}

// HashText maps text to a non-negative int via FNV-1a 32, the surrogate
// numeric form used for both association lookup and example registration.
func HashText(text string) int {
	hash := uint32(2166136261)
	for i := 0; i < len(text); i++ {
		hash ^= uint32(text[i])
		hash *= 16777619
	}
	return int(hash & 0x7FFFFFFF)
}

func boundedDigits(text string) []uint8 {
	d := digit.EncodeBytes([]byte(text))
	if len(d) > MaxAssociationDigits {
		d = d[:MaxAssociationDigits]
	}
	return d
}
