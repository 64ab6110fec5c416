package addrspace

import (
	"strings"
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "<null>"},
		{"bool", true, "true"},
		{"int", int64(-42), "-42"},
		{"uint", uint64(7), "7"},
		{"float", 1.5, "1.5"},
		{"string", "hello", "hello"},
		{"time", ts, "2024-03-01T12:30:00Z"},
		{"empty array", []any{}, "l= 0 [ ]"},
		{"array", []any{int64(3), int64(4)}, "l= 2 [ 3... ]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Fatalf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatAttribute(t *testing.T) {
	tests := []struct {
		name string
		id   AttributeID
		in   any
		want string
	}{
		{"data type", AttrDataType, "i=11", "Double (i=11)"},
		{"unknown data type", AttrDataType, "ns=2;i=3001", "Unknown (ns=2;i=3001)"},
		{"node class", AttrNodeClass, int64(2), "Variable (2)"},
		{"write mask", AttrWriteMask, uint64(0), "(0)"},
		{"access level", AttrAccessLevel, uint64(3), "CurrentRead | CurrentWrite (3)"},
		{"no access", AttrUserAccessLevel, uint64(0), "None (0)"},
		{"null", AttrDescription, nil, "<null>"},
		{"plain", AttrBrowseName, "Temperature", "Temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAttribute(tt.id, DataValue{Value: tt.in}); got != tt.want {
				t.Fatalf("FormatAttribute(%s, %v) = %q, want %q", tt.id, tt.in, got, tt.want)
			}
		})
	}
}

func TestAttributeRowsSkipsBadStatusAndSplitsLines(t *testing.T) {
	attrs := []Attribute{
		{ID: AttrBrowseName, Value: DataValue{Value: "Pump"}},
		{ID: AttrValue, Value: DataValue{Value: int64(1), Status: 0x80340000}},
		{ID: AttrDescription, Value: DataValue{Value: "line one\nline two"}},
	}
	rows := AttributeRows(attrs)
	want := []AttributeRow{
		{Name: "BrowseName", Value: "Pump"},
		{Name: "Description", Value: "line one"},
		{Name: ContinuationName, Value: "line two"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %#v", len(rows), len(want), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d = %#v, want %#v", i, rows[i], want[i])
		}
	}
}

func TestFormatAttributeRowPadsName(t *testing.T) {
	got := FormatAttributeRow(AttributeRow{Name: "NodeId", Value: "i=84"})
	want := "NodeId" + strings.Repeat(".", AttributeNameWidth-len("NodeId")) + ": i=84"
	if got != want {
		t.Fatalf("FormatAttributeRow = %q, want %q", got, want)
	}
	long := DotPad(strings.Repeat("x", 40), AttributeNameWidth)
	if len(long) != AttributeNameWidth {
		t.Fatalf("DotPad did not truncate: %q", long)
	}
}

func TestFormatMonitoredValue(t *testing.T) {
	got := FormatMonitoredValue(3.14159)
	if got != "3.142"+strings.Repeat(" ", MonitoredValueWidth-5) {
		t.Fatalf("FormatMonitoredValue(float) = %q", got)
	}
	got = FormatMonitoredValue(strings.Repeat("a", 30))
	if len(got) != MonitoredValueWidth {
		t.Fatalf("FormatMonitoredValue(long) width = %d", len(got))
	}
	if got := FormatMonitoredValue(int64(12)); strings.TrimRight(got, " ") != "12" {
		t.Fatalf("FormatMonitoredValue(int) = %q", got)
	}
}

func TestStatusAndClassNames(t *testing.T) {
	if !StatusGood.IsGood() || StatusCode(0x40000000).IsGood() {
		t.Fatal("IsGood mismatch")
	}
	if got := StatusCode(0x80340000).String(); got != "0x80340000" {
		t.Fatalf("status string = %q", got)
	}
	if got := NodeClass(3).String(); got != "NodeClass(3)" {
		t.Fatalf("unknown class = %q", got)
	}
	if KindOrganizes.Arrow() != "o-> " || KindAggregates.Arrow() != "+-> " || KindNone.Arrow() != "" {
		t.Fatal("arrow mismatch")
	}
}
