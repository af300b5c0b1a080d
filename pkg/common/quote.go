package common

import (
	"fmt"
	"strconv"
	"strings"
)

// quoteChars are the characters that would confuse a URL path segment.
const quoteChars = `:/_#?;@&=+$,"<>%\`

// Quote makes a primary key value safe to embed as a single URL path
// segment. Each special character becomes "_XX" with XX its hex code.
func Quote(value interface{}) string {
	s := fmt.Sprint(value)
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(quoteChars, c) >= 0 {
			fmt.Fprintf(&b, "_%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Unquote reverses Quote.
func Unquote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '_' && i+2 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
