package bootstrap

import (
	"strings"
	"unicode"

	"github.com/nextlevelbuilder/radar/internal/store"
)

// Segment is a catalog vertical with its own system prompt.
type Segment string

const (
	SegmentGeneral      Segment = "general"
	SegmentDrinks       Segment = "drinks"
	SegmentConstruction Segment = "construction"
)

// segmentKeywords lists the words that point a message at a segment, in
// tie-break order. Keywords are matched as whole words after folding.
var segmentKeywords = []struct {
	segment  Segment
	keywords []string
}{
	{SegmentDrinks, []string{
		"cerveja", "refrigerante", "coca", "pepsi", "skol", "brahma", "heineken",
		"agua", "suco", "vinho", "whisky", "vodka", "lata", "garrafa", "long neck",
		"budweiser", "stella", "amstel", "corona", "guarana", "fanta", "sprite",
		"bebida", "drink", "gelada", "chopp", "chope",
	}},
	{SegmentConstruction, []string{
		"cimento", "areia", "tijolo", "telha", "caixa d agua", "caixa dagua",
		"argamassa", "cal", "brita", "ferro", "vergalhao", "saco", "metro cubico",
		"m3", "milheiro", "construcao", "obra", "material", "pedra",
	}},
}

// DetectSegment scores text against each segment's keywords and returns
// the best one, or SegmentGeneral when nothing matches.
func DetectSegment(text string) Segment {
	words := " " + wordsOf(text) + " "
	best, bestScore := SegmentGeneral, 0
	for _, s := range segmentKeywords {
		score := 0
		for _, kw := range s.keywords {
			if strings.Contains(words, " "+kw+" ") {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = s.segment, score
		}
	}
	return best
}

// ParseSegment maps a name to a known segment, defaulting to general.
func ParseSegment(name string) Segment {
	switch s := Segment(strings.ToLower(strings.TrimSpace(name))); s {
	case SegmentDrinks, SegmentConstruction:
		return s
	default:
		return SegmentGeneral
	}
}

// SystemFileFor returns the prompt file of a segment.
func SystemFileFor(s Segment) string {
	if s == "" || s == SegmentGeneral {
		return SystemFile
	}
	return "SYSTEM." + string(s) + ".md"
}

// wordsOf folds text and joins its letter and digit runs with single spaces.
func wordsOf(text string) string {
	return strings.Join(strings.FieldsFunc(store.Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
