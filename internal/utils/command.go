// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParseID parses a signed 64-bit identifier (chat and user ids may be negative).
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ParseCommand splits a chat command into its lower-cased name and
// arguments. Any "@botname" suffix on the command is dropped when it names
// botUsername (or when botUsername is empty); a command addressed to a
// different bot reports ok=false.
//
//	ParseCommand("/roll@modbot 10", "modbot") // "/roll", ["10"], true
//	ParseCommand("!report", "")               // "!report", [], true
func ParseCommand(text, botUsername string) (cmd string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	head := fields[0]
	if head[0] != '/' && head[0] != '!' {
		return "", nil, false
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		target := head[at+1:]
		head = head[:at]
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			return "", nil, false
		}
	}
	return strings.ToLower(head), fields[1:], true
}
