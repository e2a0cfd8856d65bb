package macro

import "strings"

const (
	openToken  = "${"
	closeToken = '}'
)

// Span is the byte range of one macro occurrence. v[Start:End] covers the
// "${" opener and the closing brace.
type Span struct {
	Start int
	End   int
}

// Innermost returns the left-most macro occurrence of v that contains no
// other macro. It reports false when v holds no complete "${...}" pair.
func Innermost(v string) (Span, bool) {
	open := -1
	for i := 0; i < len(v); i++ {
		switch {
		case strings.HasPrefix(v[i:], openToken):
			open = i
			i++
		case v[i] == closeToken && open >= 0:
			return Span{Start: open, End: i + 1}, true
		}
	}
	return Span{}, false
}

// Contains reports whether v holds at least one complete macro.
func Contains(v string) bool {
	_, ok := Innermost(v)
	return ok
}
