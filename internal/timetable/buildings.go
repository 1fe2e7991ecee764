package timetable

import (
	"fmt"
	"strings"
)

// buildings maps the portal's building prefixes to campus building names.
// It is populated at init and never written afterwards.
var buildings = map[string]string{
	"AB":  "Adelphi Building",
	"AL":  "Allen Building",
	"BB":  "Brook Building",
	"CM":  "Computing & Technology Building",
	"DB":  "Darwin Building",
	"EIC": "Engineering Innovation Centre",
	"FB":  "Foster Building",
	"GR":  "Greenbank Building",
	"HA":  "Harris Building",
	"HB":  "Harrington Building",
	"KM":  "Kirkham Building",
	"LE":  "Leighton Building",
	"LH":  "Livesey House",
	"MB":  "Maudland Building",
	"ME":  "Media Factory",
	"SU":  "Students' Union",
	"VB":  "Victoria Building",
}

// ResolveBuilding returns the building name for code, or code itself when it
// is not in the table.
func ResolveBuilding(code string) string {
	if name, ok := buildings[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

// BuildingCode returns the leading letters of a room token ("CM101" -> "CM").
func BuildingCode(room string) string {
	room = strings.TrimSpace(room)
	end := 0
	for end < len(room) && isASCIILetter(room[end]) {
		end++
	}
	return strings.ToUpper(room[:end])
}

// ResolveLocation expands a room token into a readable location. Unknown
// buildings pass the raw token through.
func ResolveLocation(room string) string {
	code := BuildingCode(room)
	if code == "" {
		return room
	}
	name := ResolveBuilding(code)
	if name == code {
		return room
	}
	return fmt.Sprintf("%s (%s)", name, room)
}

func isASCIILetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
