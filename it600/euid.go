package it600

import "regexp"

// DefaultEUID is accepted by gateways that have never been paired with a
// Salus account.
const DefaultEUID = "0000000000000000"

var euidPattern = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)

// ValidEUID reports whether euid is a well formed gateway EUID, 16
// hexadecimal characters of either case.
func ValidEUID(euid string) bool {
	return euidPattern.MatchString(euid)
}
