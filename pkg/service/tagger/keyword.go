package tagger

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

type amenity struct {
	name     string
	keywords []string
}

// amenities is ordered; on equal hit counts the earlier entry wins
var amenities = []amenity{
	{"pool", []string{"pool", "swimming", "swim"}},
	{"spa", []string{"spa", "massage"}},
	{"restaurant", []string{"restaurant", "dinner", "lunch", "breakfast", "buffet"}},
	{"wifi", []string{"wifi", "wi-fi", "internet"}},
	{"parking", []string{"parking", "park"}},
	{"gym", []string{"gym", "fitness"}},
	{"room_service", []string{"room service", "in-room dining", "order to room"}},
	{"housekeeping", []string{"housekeeping", "cleaning", "clean", "towel", "towels"}},
	{"front_desk", []string{"reception", "front desk"}},
	{"bar", []string{"bar", "cocktail"}},
	{"tour", []string{"tour", "trip", "guide", "excursion"}},
}

const amenityOther = "other"

// detectAmenity counts keyword occurrences (substring match) per amenity
func detectAmenity(text string) string {
	t := strings.ToLower(text)
	best, bestScore := amenityOther, 0
	for _, a := range amenities {
		score := 0
		for _, kw := range a.keywords {
			if strings.Contains(t, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = a.name, score
		}
	}
	return best
}

var (
	numberRe = regexp.MustCompile(`\b\d{1,3}\b`)

	numberWords = []struct {
		re *regexp.Regexp
		n  int
	}{
		{regexp.MustCompile(`\bone\b`), 1},
		{regexp.MustCompile(`\btwo\b`), 2},
		{regexp.MustCompile(`\bthree\b`), 3},
		{regexp.MustCompile(`\bfour\b`), 4},
		{regexp.MustCompile(`\bfive\b`), 5},
		{regexp.MustCompile(`\bsix\b`), 6},
		{regexp.MustCompile(`\bseven\b`), 7},
		{regexp.MustCompile(`\beight\b`), 8},
		{regexp.MustCompile(`\bnine\b`), 9},
		{regexp.MustCompile(`\bten\b`), 10},
	}
)

// detectQuantity returns the first standalone 1-3 digit number, else the first
// number word from one to ten.
func detectQuantity(text string) (int, bool) {
	t := strings.ToLower(text)
	if m := numberRe.FindString(t); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return n, true
		}
	}
	for _, w := range numberWords {
		if w.re.MatchString(t) {
			return w.n, true
		}
	}
	return 0, false
}

func newTimeParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// detectWhen resolves relative dates and clock times against now
func detectWhen(parser *when.Parser, text string, now time.Time) (time.Time, bool) {
	r, err := parser.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}
