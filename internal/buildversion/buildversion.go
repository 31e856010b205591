// Package buildversion derives the release version string used in
// artifact names.
package buildversion

// Default is the version used when neither an override nor a checkout
// reference is available.
const Default = "0.0.0"

const commitHashLen = 40

// Resolve derives the final release version. Precedence: explicit
// override > checkout reference string > Default. Commit-hash
// abbreviation is applied to whichever string wins precedence, after
// precedence is settled.
func Resolve(override, ref string) string {
	source := override
	if source == "" {
		source = ref
	}
	if source == "" {
		return Default
	}
	return abbreviateCommitHash(source)
}

// abbreviateCommitHash turns a full 40-hex commit id into "git" plus
// its first 7 characters; any other string passes through unchanged.
func abbreviateCommitHash(s string) string {
	if len(s) != commitHashLen || !isHex(s) {
		return s
	}
	return "git" + s[:7]
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
