package sqlfmt

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type rawSQL string

func (r rawSQL) ToSQLString() string { return string(r) }

type status int

type point struct{ x, y int }

func (p *point) ToSQLString() string { return fmt.Sprintf("POINT(%d, %d)", p.x, p.y) }

func TestEscapeID(t *testing.T) {
	tests := []struct {
		input           any
		forbidQualified bool
		want            string
	}{
		{"users", false, "`users`"},
		{"u.name", false, "`u`.`name`"},
		{"u.name", true, "`u.name`"},
		{"we`ird", false, "`we``ird`"},
		{"a.b.c", false, "`a`.`b`.`c`"},
		{[]string{"a", "b.c"}, false, "`a`, `b`.`c`"},
		{[]any{"a", "b.c"}, true, "`a`, `b.c`"},
		{42, false, "`42`"},
	}
	for _, tt := range tests {
		got := EscapeID(tt.input, tt.forbidQualified)
		if got != tt.want {
			t.Errorf("EscapeID(%v, %v) = %s, want %s", tt.input, tt.forbidQualified, got, tt.want)
		}
	}
}

func TestEscapeIDDoublesBackticks(t *testing.T) {
	for _, name := range []string{"a`b", "``", "x`y`z"} {
		got := EscapeID(name, true)
		want := strings.Count(name, "`")*2 + 2
		if n := strings.Count(got, "`"); n != want {
			t.Errorf("EscapeID(%q) = %s: %d backticks, want %d", name, got, n, want)
		}
		inner := strings.ReplaceAll(got[1:len(got)-1], "``", "`")
		if inner != name {
			t.Errorf("EscapeID(%q) does not unescape back: %q", name, inner)
		}
	}
}

func TestEscapeScalars(t *testing.T) {
	n := 3
	var nilPtr *int
	var nilPoint *point
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, "NULL"},
		{"nil pointer", nilPtr, "NULL"},
		{"nil SQLer pointer", nilPoint, "NULL"},
		{"SQLer pointer", &point{1, 2}, "POINT(1, 2)"},
		{"pointer", &n, "3"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"int", 42, "42"},
		{"negative int64", int64(-3), "-3"},
		{"uint8", uint8(7), "7"},
		{"float", 1.5, "1.5"},
		{"whole float", 1000000.0, "1000000"},
		{"named int", status(2), "2"},
		{"plain string", "hello", "'hello'"},
		{"single quote", "it's", `'it\'s'`},
		{"double quote", `say "hi"`, `'say \"hi\"'`},
		{"backslash", `back\slash`, `'back\\slash'`},
		{"control chars", "a\nb\rc\td\x08e", `'a\nb\rc\td\be'`},
		{"nul and ctrl-z", "\x00\x1a", `'\0\Z'`},
		{"bytes", []byte{0x01, 0xab}, "X'01ab'"},
		{"raw sql", rawSQL("NOW()"), "NOW()"},
		{"getter", func() any { return 5 }, "5"},
		{"uuid", uuid.MustParse("00000000-0000-0000-0000-000000000001"), "'00000000-0000-0000-0000-000000000001'"},
	}
	for _, tt := range tests {
		got := Escape(tt.input, false, LocalTimeZone)
		if got != tt.want {
			t.Errorf("%s: Escape(%v) = %s, want %s", tt.name, tt.input, got, tt.want)
		}
	}
}

func TestEscapeLists(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"flat", []any{1, "a", nil}, "1, 'a', NULL"},
		{"ints", []int{1, 2, 3}, "1, 2, 3"},
		{"nested", []any{1, []any{2, 3}}, "1, (2, 3)"},
		{"rows", [][]any{{1, "a"}, {2, "b"}}, "(1, 'a'), (2, 'b')"},
		{"empty", []any{}, ""},
		{"uuid items stay scalar", []any{uuid.Nil}, "'00000000-0000-0000-0000-000000000000'"},
	}
	for _, tt := range tests {
		got := Escape(tt.input, false, LocalTimeZone)
		if got != tt.want {
			t.Errorf("%s: Escape(%v) = %s, want %s", tt.name, tt.input, got, tt.want)
		}
	}
}

func TestEscapeObjects(t *testing.T) {
	obj := map[string]any{"b": 2, "a": "x", "skip": func() any { return 1 }}
	if got, want := Escape(obj, false, LocalTimeZone), "`a` = 'x', `b` = 2"; got != want {
		t.Errorf("Escape(map) = %s, want %s", got, want)
	}

	plain := map[string]any{"a": "x"}
	if got, want := Escape(plain, true, LocalTimeZone), "'map[a:x]'"; got != want {
		t.Errorf("Escape(map, stringify) = %s, want %s", got, want)
	}
}

func TestDateToString(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	tests := []struct {
		tz   string
		want string
	}{
		{"Z", "'2024-01-02 03:04:05.006'"},
		{"+08:00", "'2024-01-02 11:04:05.006'"},
		{"+08", "'2024-01-02 11:04:05.006'"},
		{"-0130", "'2024-01-02 01:34:05.006'"},
		{" 05:30", "'2024-01-02 08:34:05.006'"},
		{"bogus", "'2024-01-02 03:04:05.006'"},
	}
	for _, tt := range tests {
		if got := DateToString(ts, tt.tz); got != tt.want {
			t.Errorf("DateToString(%q) = %s, want %s", tt.tz, got, tt.want)
		}
	}

	lt := ts.In(time.Local)
	want := fmt.Sprintf("'%04d-%02d-%02d %02d:%02d:%02d.006'",
		lt.Year(), int(lt.Month()), lt.Day(), lt.Hour(), lt.Minute(), lt.Second())
	if got := Escape(ts, false, ""); got != want {
		t.Errorf("Escape(time) in local zone = %s, want %s", got, want)
	}
}
