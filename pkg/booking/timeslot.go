package booking

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ivikasavnish/salonbook/pkg/browser"
)

var (
	clockPattern     = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*([AP]M)\b`)
	clockOnlyPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2}):(\d{2})\s*([AP]M)\s*$`)
	meridiemPattern  = regexp.MustCompile(`(?i)(\d)\s*([AP])\.?\s*M\.?`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Clock is a parsed 12-hour time.
type Clock struct {
	Hour   int // 1-12
	Minute int
	PM     bool
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	h := c.Hour % 12
	if c.PM {
		h += 12
	}
	return h*60 + c.Minute
}

// ParseClock finds the first standalone "h:mm AM|PM" in s, so slot labels
// with extra text still parse.
func ParseClock(s string) (Clock, bool) {
	return clockFromMatch(clockPattern.FindStringSubmatch(s))
}

func clockFromMatch(m []string) (Clock, bool) {
	if m == nil {
		return Clock{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return Clock{}, false
	}
	return Clock{Hour: hour, Minute: minute, PM: strings.EqualFold(m[3], "PM")}, true
}

// ParseMinutes converts "h:mm AM|PM" to minutes since midnight. Anything
// besides surrounding whitespace makes s invalid.
func ParseMinutes(s string) (int, bool) {
	c, ok := clockFromMatch(clockOnlyPattern.FindStringSubmatch(s))
	if !ok {
		return 0, false
	}
	return c.Minutes(), true
}

// NormalizeTimeText collapses whitespace and spells the meridiem as " AM"/" PM"
// so "2:00pm" and "2:00  P.M." compare equal to "2:00 PM".
func NormalizeTimeText(s string) string {
	s = strings.ToUpper(strings.TrimSpace(spacePattern.ReplaceAllString(s, " ")))
	return meridiemPattern.ReplaceAllString(s, "$1 ${2}M")
}

// SlotCandidate is one offered appointment time on the page.
type SlotCandidate struct {
	Text    string
	Minutes int
	Parsed  bool
	Element browser.Element
}

func newSlotCandidate(text string, el browser.Element) SlotCandidate {
	text = strings.TrimSpace(text)
	c, ok := ParseClock(text)
	return SlotCandidate{Text: text, Minutes: c.Minutes(), Parsed: ok, Element: el}
}

// MatchKind records which rule picked a slot.
type MatchKind string

const (
	MatchExact      MatchKind = "exact"
	MatchHourPeriod MatchKind = "hour-period"
	MatchClosest    MatchKind = "closest"
	MatchIndex      MatchKind = "index"
)

// SelectSlot picks a candidate. With a requested time the order is exact
// normalized text, then the same clock time, then same hour and period, then the smallest distance in
// minutes (earliest candidate wins ties). Without one, or when the requested
// time cannot be parsed and nothing matches literally, index is used, clamped
// to the candidate range.
func SelectSlot(cands []SlotCandidate, requested string, index int) (int, MatchKind, error) {
	if len(cands) == 0 {
		return -1, "", &NoCandidateError{What: "time slot candidates"}
	}

	if strings.TrimSpace(requested) != "" {
		want := NormalizeTimeText(requested)
		for i, c := range cands {
			if NormalizeTimeText(c.Text) == want {
				return i, MatchExact, nil
			}
		}

		if clock, ok := ParseClock(requested); ok {
			// "02:15 PM" and "2:15 PM" name the same slot.
			for i, c := range cands {
				if c.Parsed && c.Minutes == clock.Minutes() {
					return i, MatchExact, nil
				}
			}
			for i, c := range cands {
				cc, ok := ParseClock(c.Text)
				if ok && cc.Hour == clock.Hour && cc.PM == clock.PM {
					return i, MatchHourPeriod, nil
				}
			}

			target := clock.Minutes()
			best, bestDiff := -1, 0
			for i, c := range cands {
				if !c.Parsed {
					continue
				}
				diff := absInt(c.Minutes - target)
				if best < 0 || diff < bestDiff {
					best, bestDiff = i, diff
				}
			}
			if best >= 0 {
				return best, MatchClosest, nil
			}
		}
	}

	return clampIndex(index, len(cands)), MatchIndex, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
