package addrspace

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

const (
	// AttributeNameWidth is the column width names are dot-padded to.
	AttributeNameWidth = 25
	// MonitoredValueWidth is the column width of monitored values.
	MonitoredValueWidth = 16
	// ContinuationName labels the extra rows of a multi-line value.
	ContinuationName = "   |    "
	nullValue        = "<null>"
)

// AttributeRow is a name/value pair shown in the attribute panel.
type AttributeRow struct {
	Name  string
	Value string
}

// AttributeRows formats attributes for display. Attributes whose status is
// not Good are skipped and multi-line values become continuation rows.
func AttributeRows(attrs []Attribute) []AttributeRow {
	var rows []AttributeRow
	for _, a := range attrs {
		if !a.Value.Status.IsGood() {
			continue
		}
		lines := strings.Split(FormatAttribute(a.ID, a.Value), "\n")
		rows = append(rows, AttributeRow{Name: a.ID.String(), Value: lines[0]})
		for _, line := range lines[1:] {
			rows = append(rows, AttributeRow{Name: ContinuationName, Value: line})
		}
	}
	return rows
}

// FormatAttribute renders a value according to the attribute it belongs to.
func FormatAttribute(id AttributeID, dv DataValue) string {
	if dv.Value == nil {
		return nullValue
	}
	switch id {
	case AttrDataType:
		s := FormatValue(dv.Value)
		return fmt.Sprintf("%s (%s)", DataTypeName(s), s)
	case AttrNodeClass:
		if n, ok := asUint(dv.Value); ok {
			return fmt.Sprintf("%s (%d)", NodeClass(n), n)
		}
	case AttrWriteMask, AttrUserWriteMask:
		return fmt.Sprintf("(%s)", FormatValue(dv.Value))
	case AttrAccessLevel, AttrUserAccessLevel:
		if n, ok := asUint(dv.Value); ok {
			return fmt.Sprintf("%s (%d)", AccessLevelString(n), n)
		}
	}
	return FormatValue(dv.Value)
}

// FormatValue renders a normalized value. Arrays show their length and
// first element only.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return nullValue
	case []any:
		if len(x) == 0 {
			return "l= 0 [ ]"
		}
		return fmt.Sprintf("l= %d [ %s... ]", len(x), FormatValue(x[0]))
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// FormatMonitoredValue renders a value for the monitored items table and the
// tree label: floats with three decimals, padded to a fixed width.
func FormatMonitoredValue(v any) string {
	s := FormatValue(v)
	if f, ok := v.(float64); ok {
		s = strconv.FormatFloat(f, 'f', 3, 64)
	}
	return runewidth.FillRight(runewidth.Truncate(s, MonitoredValueWidth, ""), MonitoredValueWidth)
}

// DotPad pads name with dots to width columns, truncating longer names.
func DotPad(name string, width int) string {
	s := runewidth.Truncate(name, width, "")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s += strings.Repeat(".", pad)
	}
	return s
}

// FormatAttributeRow renders one panel line.
func FormatAttributeRow(r AttributeRow) string {
	return DotPad(r.Name, AttributeNameWidth) + ": " + r.Value
}

func asUint(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		if x >= 0 {
			return uint64(x), true
		}
	case float64:
		if x >= 0 && x == float64(uint64(x)) {
			return uint64(x), true
		}
	}
	return 0, false
}
