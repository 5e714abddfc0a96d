package intent

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// ParseResult is the deterministic parser's output. An empty Destinations
// slice with TotalDays 0 means "could not resolve; escalate or ask", never a
// silent wrong answer.
type ParseResult struct {
	Destinations       []types.DestinationSpec
	TotalDays          int
	Origin             string
	NeedsClarification bool
	ClarificationHint  string
}

// Parser extracts destinations, day counts and an origin from free text.
// Pure and deterministic; no network access.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// stopWords are generic tokens that must never be emitted as a place name,
// even when capitalized. A parse whose place name lands on this list is
// discarded outright.
var stopWords = map[string]bool{
	"day": true, "days": true, "week": true, "weeks": true,
	"trip": true, "travel": true, "vacation": true, "holiday": true,
	"starting": true, "from": true, "then": true, "after": true,
	"next": true, "followed": true, "and": true, "in": true, "to": true,
	"for": true, "the": true, "a": true, "an": true, "with": true,
	"my": true, "we": true, "our": true, "i": true, "me": true,
	"plan": true, "visit": true, "show": true, "want": true, "like": true,
	"go": true, "going": true, "let's": true, "lets": true, "please": true,
	"spend": true, "stay": true, "somewhere": true, "anywhere": true,
}

// connectives terminate a place-name span; a captured name must never carry a
// trailing connective token ("Peru starting" is a parse bug).
var connectives = map[string]bool{
	"starting": true, "then": true, "after": true, "followed": true, "next": true,
}

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"a": 1, "an": 1,
}

var (
	// "5 days", "2 weeks", "a week", "three days"
	dayCountRe = regexp.MustCompile(`(?i)\b(\d+|one|two|three|four|five|six|seven|a|an)\s+(days?|weeks?)\b`)
	// sequencing phrases split the text into clauses
	clauseSplitRe = regexp.MustCompile(`(?i)[,.;]|\bthen\b|\bafter\s+that\b|\bafterwards\b|\bfollowed\s+by\b`)
)

type countMatch struct {
	days int
	pos  int // byte offset within the clause
	used bool
}

type placeSpan struct {
	name     string
	pos      int
	isOrigin bool
}

// Parse implements the deterministic extraction contract.
func (p *Parser) Parse(text string) ParseResult {
	var res ParseResult

	ordered := make([]*types.DestinationSpec, 0, 4)
	index := make(map[string]*types.DestinationSpec)
	statedTotal := 0

	for _, clause := range clauseSplitRe.Split(text, -1) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		counts := findDayCounts(clause)
		spans := findPlaceSpans(clause)

		// Origin spans are consumed here; last unambiguous match wins.
		dests := spans[:0:0]
		for _, sp := range spans {
			if sp.isOrigin {
				res.Origin = sp.name
				continue
			}
			dests = append(dests, sp)
		}

		switch {
		case len(counts) == 1 && len(dests) == 1:
			upsert(&ordered, index, dests[0].name, counts[0].days)
		case len(counts) == 1 && len(dests) > 1:
			// One count shared by a group ("2 weeks in Lisbon and Granada"):
			// treat the count as a stated trip total and leave the split to
			// later explicit per-city counts.
			if statedTotal == 0 {
				statedTotal = counts[0].days
			}
			for _, d := range dests {
				upsert(&ordered, index, d.name, 0)
			}
		case len(counts) == 0:
			for _, d := range dests {
				upsert(&ordered, index, d.name, 0)
			}
		default:
			// Multiple counts in one clause: bind each place to the nearest
			// unused count.
			for _, d := range dests {
				upsert(&ordered, index, d.name, takeNearest(counts, d.pos))
			}
			for _, c := range counts {
				if !c.used && statedTotal == 0 {
					statedTotal = c.days
				}
			}
		}

		if len(dests) == 0 {
			// A count with no place in its clause is a trip-total phrase.
			for _, c := range counts {
				if statedTotal == 0 {
					statedTotal = c.days
				}
			}
		}
	}

	if len(ordered) == 0 {
		return ParseResult{Origin: res.Origin}
	}

	sum := 0
	unassigned := make([]*types.DestinationSpec, 0, len(ordered))
	for _, d := range ordered {
		sum += d.DayCount
		if d.DayCount == 0 {
			unassigned = append(unassigned, d)
		}
	}

	// A stated total fills in whatever the explicit counts left open.
	if statedTotal > 0 && len(unassigned) > 0 && statedTotal > sum {
		remainder := statedTotal - sum
		base := remainder / len(unassigned)
		extra := remainder % len(unassigned)
		for i, d := range unassigned {
			d.DayCount = base
			if i < extra {
				d.DayCount++
			}
			sum += d.DayCount
		}
	}

	anyExplicit := false
	for _, d := range ordered {
		if d.DayCount > 0 {
			anyExplicit = true
			break
		}
	}

	switch {
	case anyExplicit:
		res.TotalDays = sum
		if statedTotal > 0 && abs(statedTotal-sum) > 1 {
			res.NeedsClarification = true
			res.ClarificationHint = "stated trip length disagrees with the per-destination day counts"
		}
	case statedTotal > 0:
		res.TotalDays = statedTotal
	}

	res.Destinations = make([]types.DestinationSpec, len(ordered))
	for i, d := range ordered {
		d.Order = i + 1
		res.Destinations[i] = *d
	}
	return res
}

func upsert(ordered *[]*types.DestinationSpec, index map[string]*types.DestinationSpec, name string, days int) {
	key := strings.ToLower(name)
	if stopWords[key] {
		return
	}
	if d, ok := index[key]; ok {
		if days > 0 {
			d.DayCount = days
		}
		return
	}
	d := &types.DestinationSpec{Name: name, DayCount: days}
	index[key] = d
	*ordered = append(*ordered, d)
}

func findDayCounts(clause string) []countMatch {
	matches := dayCountRe.FindAllStringSubmatchIndex(clause, -1)
	counts := make([]countMatch, 0, len(matches))
	for _, m := range matches {
		num := strings.ToLower(clause[m[2]:m[3]])
		unit := strings.ToLower(clause[m[4]:m[5]])
		n, ok := wordNumbers[num]
		if !ok {
			parsed, err := strconv.Atoi(num)
			if err != nil {
				continue
			}
			n = parsed
		}
		if strings.HasPrefix(unit, "week") {
			n *= 7
		}
		counts = append(counts, countMatch{days: n, pos: m[0]})
	}
	return counts
}

func takeNearest(counts []countMatch, pos int) int {
	best := -1
	bestDist := 1 << 30
	for i := range counts {
		if counts[i].used {
			continue
		}
		d := abs(counts[i].pos - pos)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best == -1 {
		return 0
	}
	counts[best].used = true
	return counts[best].days
}

// findPlaceSpans scans a clause for maximal runs of capitalized tokens that
// are neither stop words nor connectives. A span directly preceded by "from"
// and not followed by a day-count phrase is an origin, not a destination.
func findPlaceSpans(clause string) []placeSpan {
	fields := splitWithOffsets(clause)
	spans := []placeSpan{}

	i := 0
	for i < len(fields) {
		f := fields[i]
		if !isCapitalized(f.clean) || stopWords[f.lower] || connectives[f.lower] {
			i++
			continue
		}
		start := i
		j := i
		for j < len(fields) && isCapitalized(fields[j].clean) && !stopWords[fields[j].lower] && !connectives[fields[j].lower] {
			j++
		}
		parts := make([]string, 0, j-start)
		for k := start; k < j; k++ {
			parts = append(parts, fields[k].clean)
		}
		name := strings.Join(parts, " ")

		sp := placeSpan{name: name, pos: fields[start].pos}
		if start > 0 && fields[start-1].lower == "from" && !followedByCount(fields, j) {
			sp.isOrigin = true
		}
		if !stopWords[strings.ToLower(name)] {
			spans = append(spans, sp)
		}
		i = j
	}
	return spans
}

// followedByCount reports whether the token at idx starts a day-count phrase,
// which disambiguates "from Paris 3 days" (destination) from "from Paris"
// (origin).
func followedByCount(fields []field, idx int) bool {
	if idx >= len(fields) {
		return false
	}
	rest := fields[idx].clean
	if idx+1 < len(fields) {
		rest += " " + fields[idx+1].clean
	}
	return dayCountRe.MatchString(rest)
}

type field struct {
	clean string
	lower string
	pos   int
}

func splitWithOffsets(clause string) []field {
	fields := []field{}
	i := 0
	for i < len(clause) {
		for i < len(clause) && clause[i] == ' ' {
			i++
		}
		start := i
		for i < len(clause) && clause[i] != ' ' {
			i++
		}
		if start == i {
			continue
		}
		raw := clause[start:i]
		clean := strings.Trim(raw, `.,!?;:"'()`)
		if clean == "" {
			continue
		}
		fields = append(fields, field{clean: clean, lower: strings.ToLower(clean), pos: start})
	}
	return fields
}

func isCapitalized(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
