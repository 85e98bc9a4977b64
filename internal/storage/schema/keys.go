package schema

import "fmt"

// FormatNumberKey renders an int64 as a fixed-width decimal string so
// lexical key ordering matches numeric ordering.
func FormatNumberKey(n int64) string {
	return fmt.Sprintf("%020d", n)
}
