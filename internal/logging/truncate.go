package logging

// MaxLogFieldLength is the maximum length of a string field before truncation.
// Remote command output and rendered scripts can be huge; log fields should not be.
const MaxLogFieldLength = 1024

// Truncate shortens a string to MaxLogFieldLength, appending "..." if it was cut
func Truncate(s string) string {
	return TruncateN(s, MaxLogFieldLength)
}

// TruncateN shortens a string to at most n characters, appending "..." if it was cut
func TruncateN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// TruncateSlice limits a slice of strings to maxItems entries, replacing the
// tail with a "... and N more" marker
func TruncateSlice(items []string, maxItems int) []string {
	if len(items) <= maxItems {
		return items
	}
	truncated := make([]string, 0, maxItems+1)
	truncated = append(truncated, items[:maxItems]...)
	truncated = append(truncated, "... and "+itoa(len(items)-maxItems)+" more")
	return truncated
}

// itoa converts an int to a string without pulling in strconv for a hot path
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
