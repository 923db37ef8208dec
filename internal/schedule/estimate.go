package schedule

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	explicitHoursRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(h|hr|hrs|hour|hours)\b`)
	explicitMinutesRe = regexp.MustCompile(`(\d+)\s*(m|min|mins|minute|minutes)\b`)
	connectorRe       = regexp.MustCompile(`[,;]| and | then | after `)
)

type keywordWeight struct {
	re    *regexp.Regexp
	delta float64
}

func words(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`\b(` + pattern + `)\b`)
}

// keywordWeights adjust the base estimate. Every matching group applies once.
var keywordWeights = []keywordWeight{
	// quick actions
	{words(`call|email|reply|review|read|check|follow up|ping|confirm|schedule`), -0.5},
	// execution work
	{words(`write|draft|plan|prepare|research|analyze|document|presentation`), 1},
	// delivery work
	{words(`build|implement|develop|feature|integration|migrate|refactor|architecture|prototype|debug`), 2},
	// Only the outer alternatives are word-bounded, so "complexity" counts.
	{regexp.MustCompile(`\bmultiple|complex|deep|detailed|end-to-end|full\b`), 1},
	// coursework
	{words(`homework|assignment|worksheet|problem set|study guide|lab|lab report|essay|paper|project|presentation|slides|outline|annotate|annotation|reading log|chapter questions|dbq|frq|saq|mcq|poster|model|vocab|flashcards|notes|notecards|bibliography|citation|source analysis`), 1},
	// exams
	{words(`quiz|test|exam|midterm|final|ap exam|sat|act|study|revision|review notes|practice test|retake|unit test|chapter test|benchmark|state test|regents|psat|practice questions|review packet|memorize`), 1.5},
	// applications and long-form writing
	{words(`college application|common app|personal statement|scholarship|essay draft|portfolio|supplemental essay|activities list|resume|brag sheet|recommendation letter|letter of recommendation|fafsa`), 2},
	// school admin
	{words(`check gradebook|submit form|permission slip|email teacher|turn in|print|attendance office|late pass|hall pass|sign form|parent signature|bring form|upload screenshot|google classroom post|canvas post`), -0.5},
	// group coordination
	{words(`group project|team project|with classmates|club meeting|student council|group chat|assign roles|peer review|partner work|meeting with team`), 0.75},
	// practices and games
	{words(`practice|rehearsal|tryout|game|match|tournament|meet|training|film study|weight room|conditioning|scrimmage|warm up|band practice|orchestra practice|choir rehearsal|drama rehearsal|debate prep|mock trial|robotics build|yearbook meeting`), 1},
	// support and planning
	{words(`tutoring|office hours|study hall|advisory|counselor meeting|college counselor|teacher meeting|make up work|missing work`), 0.75},
	// focused creative/tech blocks
	{words(`video edit|edit video|recording|podcast|coding project|science fair|lab setup|build prototype|art piece|music composition`), 1.25},
}

// EstimateHours guesses how long a task takes from its title and
// description. An explicit "2h" / "45 min" in the text wins; otherwise a
// keyword score starting at one hour is used. The result is normalized.
func EstimateHours(title, description string) float64 {
	t := strings.ToLower(title)
	d := strings.ToLower(description)
	combined := t + " " + d

	if m := explicitHoursRe.FindStringSubmatch(combined); m != nil {
		return NormalizeHours(parseAmount(m[1]))
	}
	if m := explicitMinutesRe.FindStringSubmatch(combined); m != nil {
		return NormalizeHours(parseAmount(m[1]) / 60)
	}

	titleWords := len(strings.Fields(t))
	descWords := len(strings.Fields(d))

	score := 1.0
	if titleWords >= 3 {
		score += 0.5
	}
	if descWords >= 8 {
		score += 0.5
	}
	if descWords >= 20 {
		score += 0.5
	}
	if titleWords+descWords >= 35 {
		score += 0.5
	}
	if len(connectorRe.FindAllStringIndex(combined, -1)) >= 2 {
		score += 0.5
	}

	for _, kw := range keywordWeights {
		if kw.re.MatchString(combined) {
			score += kw.delta
		}
	}

	return NormalizeHours(score)
}

// parseAmount reads a matched digit string. Values too large for a float64
// come back as +Inf, which NormalizeHours clamps to the maximum.
func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}
