package bridge

import (
	"fmt"
	"strconv"
	"strings"
)

// Token identifies a pending native callback while it crosses the script
// boundary. Zero is never a valid token.
type Token uint64

// String the hex form passed to script
func (token Token) String() string {
	return strconv.FormatUint(uint64(token), 16)
}

// ParseToken parse the hex form received from script
func ParseToken(text string) (Token, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("empty call id")
	}

	v, err := strconv.ParseUint(text, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid call id %q", text)
	}

	if v == 0 {
		return 0, fmt.Errorf("invalid call id %q", text)
	}
	return Token(v), nil
}
