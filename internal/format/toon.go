package format

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TOONRenderer renders a payload in TOON (token-oriented object notation):
// scalars on one line, primitive arrays inlined as "[n]: a,b,c", arrays of
// uniform objects as a tabular block with a sorted-field header, and object
// fields as "key: value" lines sorted alphabetically for deterministic
// output (token-for-token reproducibility across identical calls).
type TOONRenderer struct{}

// NewTOONRenderer returns a ready-to-use TOON renderer; it holds no state.
func NewTOONRenderer() *TOONRenderer {
	return &TOONRenderer{}
}

func (r *TOONRenderer) ContentType() string  { return "text/x-toon" }
func (r *TOONRenderer) Format() OutputFormat { return FormatTOON }

// Render converts payload to its generic JSON representation first (so
// struct field tags are honored the same way the JSON renderer sees them)
// and then walks that representation into TOON text.
func (r *TOONRenderer) Render(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("rendering toon: %w", err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return "", fmt.Errorf("rendering toon: %w", err)
	}
	var out strings.Builder
	writeTOON(&out, generic, 0)
	return out.String(), nil
}

var bareIdentifier = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

func writeTOON(out *strings.Builder, v any, depth int) {
	switch val := v.(type) {
	case nil:
		out.WriteString("null\n")
	case bool:
		out.WriteString(strconv.FormatBool(val))
		out.WriteString("\n")
	case float64:
		out.WriteString(formatNumber(val))
		out.WriteString("\n")
	case string:
		out.WriteString(scalarString(val))
		out.WriteString("\n")
	case []any:
		writeTOONArray(out, val, depth)
	case map[string]any:
		writeTOONObject(out, val, depth)
	default:
		out.WriteString(fmt.Sprintf("%v\n", val))
	}
}

func writeTOONArray(out *strings.Builder, items []any, depth int) {
	if len(items) == 0 {
		out.WriteString("[]\n")
		return
	}
	if fields, ok := uniformObjectFields(items); ok {
		fmt.Fprintf(out, "[%d]{%s}:\n", len(items), strings.Join(fields, ","))
		indent := strings.Repeat("  ", depth+1)
		for _, item := range items {
			obj := item.(map[string]any)
			row := make([]string, len(fields))
			for i, f := range fields {
				row[i] = scalarString(stringify(obj[f]))
			}
			out.WriteString(indent)
			out.WriteString(strings.Join(row, ","))
			out.WriteString("\n")
		}
		return
	}

	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = stringify(item)
	}
	fmt.Fprintf(out, "[%d]: %s\n", len(items), strings.Join(parts, ","))
}

func writeTOONObject(out *strings.Builder, obj map[string]any, depth int) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	indent := strings.Repeat("  ", depth)
	for _, k := range keys {
		val := obj[k]
		switch child := val.(type) {
		case map[string]any, []any:
			fmt.Fprintf(out, "%s%s:\n", indent, k)
			writeTOON(out, child, depth+1)
		default:
			fmt.Fprintf(out, "%s%s: %s", indent, k, stringify(val))
			out.WriteString("\n")
		}
	}
}

// uniformObjectFields reports the sorted union of field names if every item
// is a JSON object, enabling the tabular array rendering.
func uniformObjectFields(items []any) ([]string, bool) {
	fieldSet := map[string]bool{}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		for k := range obj {
			fieldSet[k] = true
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatNumber(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func scalarString(s string) string {
	if bareIdentifier.MatchString(s) {
		return s
	}
	return strconv.Quote(s)
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
