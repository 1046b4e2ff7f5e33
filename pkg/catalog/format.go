package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Format fills a brace template with args.
//
//	{}    next argument
//	{N}   argument N
//	{{ }} literal braces
func Format(tmpl string, args []string) (string, error) {
	var b strings.Builder
	next := 0
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("template %q: unclosed '{'", tmpl)
			}
			field := tmpl[i+1 : i+1+end]
			idx := next
			if field == "" {
				next++
			} else {
				n, err := strconv.Atoi(field)
				if err != nil || n < 0 {
					return "", fmt.Errorf("template %q: bad field {%s}", tmpl, field)
				}
				idx = n
			}
			if idx >= len(args) {
				return "", fmt.Errorf("template %q: argument %d missing (have %d)", tmpl, idx, len(args))
			}
			b.WriteString(args[idx])
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("template %q: single '}'", tmpl)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
