package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestTableFormatter_Format_Table(t *testing.T) {
	table := &Table{
		Headers: []string{"NAME", "VALUE"},
		Rows: [][]string{
			{"key1", "value1"},
			{"key2", "value2"},
		},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "NAME") {
		t.Error("Format() missing header NAME")
	}
	if !strings.Contains(out, "key1") {
		t.Error("Format() missing row data key1")
	}
}

func TestTableFormatter_Format_TableValue(t *testing.T) {
	table := Table{
		Headers: []string{"COL"},
		Rows:    [][]string{{"data"}},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	if !strings.Contains(buf.String(), "data") {
		t.Error("Format() missing data from Table value")
	}
}

func TestTableFormatter_Format_TableNoHeaders(t *testing.T) {
	table := &Table{
		Headers: []string{"NAME", "VALUE"},
		Rows: [][]string{
			{"key1", "value1"},
		},
	}

	var buf bytes.Buffer
	f := &TableFormatter{NoHeaders: true}

	if err := f.Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "NAME") {
		t.Error("Format() should not contain headers when NoHeaders=true")
	}
	if !strings.Contains(out, "key1") {
		t.Error("Format() missing row data")
	}
}

func TestTableFormatter_Format_Nil(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, nil); err != nil {
		t.Fatalf("Format(nil) error = %v", err)
	}

	if buf.Len() != 0 {
		t.Error("Format(nil) should produce empty output")
	}
}

type testRow struct {
	Token     string    `json:"token"`
	Count     int       `json:"count"`
	Active    bool      `json:"active"`
	Backend   string    `json:"backend" table:"wide"`
	Internal  string    `table:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func TestTableFormatter_Format_Slice(t *testing.T) {
	data := []testRow{
		{Token: "tok_a", Count: 3, Active: true, Backend: "badger", Internal: "hidden"},
		{Token: "tok_b", Count: 7, Active: false, Backend: "redis", Internal: "hidden"},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "TOKEN") {
		t.Error("Format() missing header")
	}
	if !strings.Contains(out, "CREATED_AT") {
		t.Error("Format() should derive headers from json tags")
	}
	if !strings.Contains(out, "tok_a") || !strings.Contains(out, "tok_b") {
		t.Error("Format() missing row data")
	}
	if strings.Contains(out, "BACKEND") {
		t.Error("Format() should hide wide-only fields when Wide=false")
	}
	if strings.Contains(out, "hidden") {
		t.Error("Format() should skip table:\"-\" fields")
	}
}

func TestTableFormatter_Format_SliceWide(t *testing.T) {
	data := []testRow{
		{Token: "tok_a", Count: 3, Backend: "badger"},
	}

	var buf bytes.Buffer
	f := &TableFormatter{Wide: true}

	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "BACKEND") {
		t.Error("Format() should include wide-only field when Wide=true")
	}
	if !strings.Contains(out, "badger") {
		t.Error("Format() missing wide field data")
	}
}

func TestTableFormatter_Format_EmptySlice(t *testing.T) {
	var data []testRow

	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	if strings.Contains(buf.String(), "TOKEN") {
		t.Error("Format() should not have headers for empty slice")
	}
}

func TestTableFormatter_Format_PointerSlice(t *testing.T) {
	data := []*testRow{
		{Token: "tok_a", Count: 3},
		{Token: "tok_b", Count: 7},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "tok_a") || !strings.Contains(out, "tok_b") {
		t.Error("Format() missing pointer slice data")
	}
}

func TestTableFormatter_Format_Map(t *testing.T) {
	data := map[string]any{
		"zeta":  "last",
		"alpha": "first",
	}

	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "KEY") || !strings.Contains(out, "VALUE") {
		t.Error("Format() missing map headers")
	}
	// Keys render in sorted order so output is stable.
	if strings.Index(out, "alpha") > strings.Index(out, "zeta") {
		t.Errorf("Format() map keys not sorted, got %q", out)
	}
}

func TestTableFormatter_Format_SingleStruct(t *testing.T) {
	data := struct {
		Token string `json:"token"`
		Count int    `json:"count"`
	}{Token: "tok_a", Count: 123}

	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "FIELD") || !strings.Contains(out, "VALUE") {
		t.Error("Format() missing struct headers")
	}
	if !strings.Contains(out, "token") || !strings.Contains(out, "123") {
		t.Error("Format() missing struct data")
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"string", "hello", "hello"},
		{"empty string", "", "-"},
		{"int", 42, "42"},
		{"int64", int64(123), "123"},
		{"uint", uint(99), "99"},
		{"float64", 3.14159, "3.14"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"byte slice", []byte(`{"user_id":"u1"}`), `{"user_id":"u1"}`},
		{"empty byte slice", []byte{}, "-"},
		{"empty slice", []int{}, "-"},
		{"slice", []int{1, 2, 3}, "[3 items]"},
		{"empty map", map[string]int{}, "-"},
		{"map", map[string]int{"a": 1}, "{1 keys}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cell(reflect.ValueOf(tt.input))
			if got != tt.want {
				t.Errorf("cell(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCell_Time(t *testing.T) {
	tm := time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)
	if got := cell(reflect.ValueOf(tm)); got != "2026-06-15T14:30:00Z" {
		t.Errorf("cell(time) = %q, want %q", got, "2026-06-15T14:30:00Z")
	}

	var zero time.Time
	if got := cell(reflect.ValueOf(zero)); got != "-" {
		t.Errorf("cell(zero time) = %q, want %q", got, "-")
	}
}

func TestCell_Pointer(t *testing.T) {
	val := "pointer value"
	if got := cell(reflect.ValueOf(&val)); got != "pointer value" {
		t.Errorf("cell(*string) = %q, want %q", got, "pointer value")
	}

	var nilPtr *string
	if got := cell(reflect.ValueOf(nilPtr)); got != "-" {
		t.Errorf("cell(nil ptr) = %q, want %q", got, "-")
	}
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Name", "Name"},
		{"UserName", "User_Name"},
		{"already_snake", "already_snake"},
		{"modified_at", "modified_at"},
	}

	for _, tt := range tests {
		if got := snakeCase(tt.input); got != tt.want {
			t.Errorf("snakeCase(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTable_Render(t *testing.T) {
	table := &Table{
		Headers: []string{"COL1", "COL2"},
		Rows: [][]string{
			{"a", "b"},
			{"c", "d"},
		},
	}

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 { // 1 header + 2 data rows
		t.Errorf("Render() lines = %d, want 3", len(lines))
	}
}

func TestTable_SetHeadersAddRow(t *testing.T) {
	table := &Table{}
	table.SetHeaders("H1", "H2", "H3")
	table.AddRow("cell1", "cell2", "cell3")

	if len(table.Headers) != 3 {
		t.Errorf("SetHeaders() headers = %d, want 3", len(table.Headers))
	}
	if len(table.Rows) != 1 || len(table.Rows[0]) != 3 {
		t.Errorf("AddRow() rows = %v, want one row of 3 cells", table.Rows)
	}
}

func TestTableFormatter_Format_JSONFallback(t *testing.T) {
	// A bare scalar has no table form and falls back to JSON.
	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, 42); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "42" {
		t.Errorf("Format(42) = %q, want %q", got, "42")
	}
}
