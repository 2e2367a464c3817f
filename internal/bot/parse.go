package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// maxPerDay bounds the frequency a user may ask for from the chat.
const maxPerDay = 48

// ParseIDArg extracts a numeric manga ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, fmt.Errorf("manga ID is required")
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid manga ID %q", fields[0])
	}
	return id, nil
}

// ParseFrequencyArgs extracts a manga ID and the number of issues per day.
func ParseFrequencyArgs(args string) (int64, int, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("usage: /frequency <manga_id> <per_day>")
	}
	id, err := ParseIDArg(parts[0])
	if err != nil {
		return 0, 0, err
	}
	perDay, err := strconv.Atoi(parts[1])
	if err != nil || perDay < 1 || perDay > maxPerDay {
		return 0, 0, fmt.Errorf("frequency must be between 1 and %d issues per day", maxPerDay)
	}
	return id, perDay, nil
}
