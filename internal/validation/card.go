package validation

// validCardChecksum runs the mod-10 check over a digits-only card number.
func validCardChecksum(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	for pos := 0; pos < len(digits); pos++ {
		c := digits[len(digits)-1-pos]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if pos%2 == 1 {
			if n *= 2; n > 9 {
				n -= 9
			}
		}
		sum += n
	}
	return sum%10 == 0
}
