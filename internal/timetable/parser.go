package timetable

import (
	"errors"
	"regexp"
	"strings"

	"github.com/studyplanner/planner/types"
	"golang.org/x/net/html"
)

// cellMarker flags a table cell that carries event data.
const cellMarker = "Group"

// NoEventsMessage is reported when a page yields no events.
const NoEventsMessage = "No events found"

// ErrNoEvents is returned by Parse when the page contained no events.
var ErrNoEvents = errors.New(NoEventsMessage)

// eventPattern captures start, end, module, room, lecturer, session type and
// the group id (parenthesised or bare).
var eventPattern = regexp.MustCompile(
	`(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})\s*(.*?)\s*\b([A-Z]{1,4}\d{1,4}[A-Z]?)\s+(.*?)\s*(\S+)\s*(?:\(Group:\s*([^)]*)\)|Group:\s*(\S+))`,
)

// timeRangePattern finds the "HH:MM - HH:MM" that opens every slot.
var timeRangePattern = regexp.MustCompile(`\d{1,2}:\d{2}\s*-\s*\d{1,2}:\d{2}`)

// groupPattern finds the group clause that closes a slot.
var groupPattern = regexp.MustCompile(`\(Group:\s*[^)]*\)|Group:\s*\S+`)

// blockElements break text flow; inline elements such as <b> do not.
var blockElements = map[string]bool{
	"br": true, "div": true, "p": true, "li": true, "ul": true, "ol": true,
	"tr": true, "td": true, "th": true, "table": true, "hr": true,
}

// RawCell is the flattened text of one event-bearing table cell.
type RawCell struct {
	Index int
	Text  string
}

// ParseResult is the outcome of parsing a timetable page.
type ParseResult struct {
	Success bool                `json:"success"`
	Events  []types.ParsedEvent `json:"events,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Parse extracts every event from the page in cell traversal order. When the
// page has no events the result carries NoEventsMessage and ErrNoEvents is
// returned alongside it.
func Parse(page string) (ParseResult, error) {
	cells, err := ExtractCells(page)
	if err != nil {
		return ParseResult{Success: false, Error: "invalid timetable markup"}, err
	}

	var events []types.ParsedEvent
	for _, cell := range cells {
		events = append(events, ParseCellText(cell.Text)...)
	}

	if len(events) == 0 {
		return ParseResult{Success: false, Error: NoEventsMessage}, ErrNoEvents
	}
	return ParseResult{Success: true, Events: events}, nil
}

// ExtractCells returns the td cells whose text contains the event marker, in
// document order. When cells are nested only the innermost marked cell is
// kept so that the same slot is not read twice.
func ExtractCells(page string) ([]RawCell, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	var cells []RawCell
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" {
			text := nodeText(n)
			if strings.Contains(text, cellMarker) && !hasMarkedCell(n) {
				cells = append(cells, RawCell{Index: len(cells), Text: Flatten(text)})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return cells, nil
}

// ParseCellText pulls events out of one flattened cell. Each slot runs from a
// time range to its first group clause and never past the next time range.
// The leftmost slot is matched, cut out of the working text, and matching
// repeats on what is left. A slot the pattern rejects is dropped with any
// other unmatched leftovers.
func ParseCellText(text string) []types.ParsedEvent {
	var events []types.ParsedEvent
	remaining := text
	for {
		loc := timeRangePattern.FindStringIndex(remaining)
		if loc == nil {
			return events
		}
		slot := slotText(remaining, loc)
		m := eventPattern.FindStringSubmatchIndex(slot)
		if m == nil || m[0] != 0 {
			remaining = remaining[loc[1]:]
			continue
		}
		events = append(events, buildEvent(slot, m))
		remaining = remaining[loc[0]+m[1]:]
	}
}

// slotText bounds the slot opened by the time range at loc.
func slotText(text string, loc []int) string {
	end := len(text)
	if next := timeRangePattern.FindStringIndex(text[loc[1]:]); next != nil {
		end = loc[1] + next[0]
	}
	slot := text[loc[0]:end]
	if g := groupPattern.FindStringIndex(slot); g != nil {
		slot = slot[:g[1]]
	}
	return slot
}

// Flatten collapses whitespace runs to single spaces and trims the ends.
func Flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func buildEvent(text string, m []int) types.ParsedEvent {
	group := strings.TrimSpace(submatch(text, m, 7))
	if group == "" {
		group = submatch(text, m, 8)
	}
	room := submatch(text, m, 4)

	ev := types.ParsedEvent{
		Start:    submatch(text, m, 1),
		End:      submatch(text, m, 2),
		Module:   strings.TrimSpace(submatch(text, m, 3)),
		Room:     room,
		Location: ResolveLocation(room),
		Lecturer: strings.TrimSpace(submatch(text, m, 5)),
		Session:  submatch(text, m, 6),
		Group:    group,
	}
	ev.Description = describe(ev)
	return ev
}

func describe(ev types.ParsedEvent) string {
	var parts []string
	if ev.Session != "" {
		parts = append(parts, ev.Session)
	}
	if ev.Lecturer != "" {
		parts = append(parts, ev.Lecturer)
	}
	if ev.Group != "" {
		parts = append(parts, "Group: "+ev.Group)
	}
	return strings.Join(parts, " | ")
}

func submatch(s string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			return
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	walk(n)
	return b.String()
}

func hasMarkedCell(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" && strings.Contains(nodeText(c), cellMarker) {
			return true
		}
		if hasMarkedCell(c) {
			return true
		}
	}
	return false
}
