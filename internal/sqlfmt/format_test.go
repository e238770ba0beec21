package sqlfmt

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		values []any
		want   string
	}{
		{"value and identifier", "WHERE a = ? AND b = ??", []any{1, "col"}, "WHERE a = 1 AND b = `col`"},
		{"string value", "SELECT * FROM t WHERE name = ?", []any{"o'k"}, `SELECT * FROM t WHERE name = 'o\'k'`},
		{"identifier list", "SELECT ?? FROM t", []any{[]string{"a", "b.c"}}, "SELECT `a`, `b`.`c` FROM t"},
		{"triple marks ignored", "a ??? b ?", []any{1}, "a ??? b 1"},
		{"values exhausted", "? AND ?", []any{1}, "1 AND ?"},
		{"trailing text kept", "x = ? LIMIT 1", []any{2}, "x = 2 LIMIT 1"},
		{"no placeholders", "SELECT 1", []any{1}, "SELECT 1"},
		{"no values", "SELECT ?", nil, "SELECT ?"},
		{"list value", "id IN (?)", []any{[]int{1, 2}}, "id IN (1, 2)"},
	}
	for _, tt := range tests {
		if got := Format(tt.sql, tt.values, false, LocalTimeZone); got != tt.want {
			t.Errorf("%s: Format(%q) = %q, want %q", tt.name, tt.sql, got, tt.want)
		}
	}
}

func TestFormatStringifyObjects(t *testing.T) {
	obj := map[string]any{"a": 1}
	if got, want := Format("SET ?", []any{obj}, false, LocalTimeZone), "SET `a` = 1"; got != want {
		t.Errorf("Format(object) = %q, want %q", got, want)
	}
	if got, want := Format("SET ?", []any{obj}, true, LocalTimeZone), "SET 'map[a:1]'"; got != want {
		t.Errorf("Format(object, stringify) = %q, want %q", got, want)
	}
}
