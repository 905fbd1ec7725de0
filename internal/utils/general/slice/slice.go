package slice

import "strings"

// Unique returns the non-empty items of input in first-seen order with
// duplicates removed.
func Unique(input []string) []string {
	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, item := range input {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

// SplitList splits comma or whitespace separated values, as accepted on the
// command line, and drops duplicates.
func SplitList(values []string) []string {
	var fields []string
	for _, v := range values {
		fields = append(fields, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})...)
	}
	return Unique(fields)
}
