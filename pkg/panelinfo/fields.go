package panelinfo

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Field is one named value of an Info record
type Field struct {
	Name  string // JSON name, e.g. "rr_min_hz"
	Group string
	Value string
	Set   bool
}

// FieldDiff is a field whose value differs between two records
type FieldDiff struct {
	Name  string
	Group string
	Left  string
	Right string
}

// Fields lists every record field in declaration order
func Fields(info *Info) []Field {
	if info == nil {
		info = &Info{}
	}
	v := reflect.ValueOf(info).Elem()
	t := v.Type()

	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		group := sf.Tag.Get("group")
		if group == "" {
			continue
		}
		f := Field{Name: jsonName(sf), Group: group}
		fv := v.Field(i)
		if !fv.IsNil() {
			f.Set = true
			f.Value = formatValue(fv.Elem())
		}
		fields = append(fields, f)
	}
	return fields
}

// SetFields lists only the decoded fields
func SetFields(info *Info) []Field {
	var out []Field
	for _, f := range Fields(info) {
		if f.Set {
			out = append(out, f)
		}
	}
	return out
}

// Diff returns the fields whose presence or value differ between a and b
func Diff(a, b *Info) []FieldDiff {
	left := Fields(a)
	right := Fields(b)

	var diffs []FieldDiff
	for i := range left {
		l, r := left[i], right[i]
		if l.Set == r.Set && l.Value == r.Value {
			continue
		}
		diffs = append(diffs, FieldDiff{
			Name:  l.Name,
			Group: l.Group,
			Left:  displayValue(l),
			Right: displayValue(r),
		})
	}
	return diffs
}

// Set assigns a field by its JSON name. An empty value clears the field.
// Booleans accept strconv.ParseBool forms plus "yes" and "no".
func (info *Info) Set(name, value string) error {
	v := reflect.ValueOf(info).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Tag.Get("group") == "" || jsonName(sf) != name {
			continue
		}
		fv := v.Field(i)
		if value == "" {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}

		switch fv.Type().Elem().Kind() {
		case reflect.String:
			s := value
			fv.Set(reflect.ValueOf(&s))
		case reflect.Bool:
			b, err := parseBool(value)
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			fv.Set(reflect.ValueOf(&b))
		case reflect.Int:
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			fv.Set(reflect.ValueOf(&n))
		default:
			return fmt.Errorf("field %s: unsupported type %s", name, fv.Type())
		}
		return nil
	}

	return fmt.Errorf("unknown field %q", name)
}

// FieldNames returns every settable field name in declaration order
func FieldNames() []string {
	fields := Fields(nil)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return sf.Name
	}
	return name
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		if v.Bool() {
			return "Yes"
		}
		return "No"
	case reflect.Int:
		return strconv.FormatInt(v.Int(), 10)
	default:
		return fmt.Sprint(v.Interface())
	}
}

func displayValue(f Field) string {
	if !f.Set {
		return "-"
	}
	return f.Value
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}
