package storage

// matchPattern matches a key against a glob-style pattern as used by
// KEYS and SCAN:
//
//	*      matches any number of characters (including zero)
//	?      matches a single character
//	[abc]  matches any character in the brackets
//	[a-z]  matches any character in the range
//	\x     matches x literally
func matchPattern(str, pattern string) bool {
	return matchGlob(str, pattern, 0, 0)
}

// matchGlob is a backtracking matcher over str[si:] and pattern[pi:]
func matchGlob(str, pattern string, si, pi int) bool {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '*':
			// Collapse consecutive stars
			for pi < len(pattern) && pattern[pi] == '*' {
				pi++
			}
			if pi == len(pattern) {
				return true
			}
			for i := si; i <= len(str); i++ {
				if matchGlob(str, pattern, i, pi) {
					return true
				}
			}
			return false

		case '?':
			if si >= len(str) {
				return false
			}
			si++
			pi++

		case '[':
			if si >= len(str) {
				return false
			}
			matched, next := matchBracket(str[si], pattern, pi)
			if !matched {
				return false
			}
			si++
			pi = next

		case '\\':
			if pi+1 < len(pattern) {
				pi++
			}
			if si >= len(str) || str[si] != pattern[pi] {
				return false
			}
			si++
			pi++

		default:
			if si >= len(str) || str[si] != pattern[pi] {
				return false
			}
			si++
			pi++
		}
	}

	return si == len(str)
}

// matchBracket matches c against the bracket expression starting at
// pattern[pi] (which is '['). Returns whether it matched and the index
// just past the closing bracket.
func matchBracket(c byte, pattern string, pi int) (bool, int) {
	pi++ // skip '['

	negate := false
	if pi < len(pattern) && pattern[pi] == '^' {
		negate = true
		pi++
	}

	matched := false
	first := true
	for pi < len(pattern) && (first || pattern[pi] != ']') {
		first = false
		if pi+2 < len(pattern) && pattern[pi+1] == '-' && pattern[pi+2] != ']' {
			if pattern[pi] <= c && c <= pattern[pi+2] {
				matched = true
			}
			pi += 3
			continue
		}
		if pattern[pi] == '\\' && pi+1 < len(pattern) {
			pi++
		}
		if pattern[pi] == c {
			matched = true
		}
		pi++
	}

	if pi < len(pattern) && pattern[pi] == ']' {
		pi++
	}

	if negate {
		matched = !matched
	}
	return matched, pi
}
