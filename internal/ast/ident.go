package ast

var keywords = map[string]bool{
	"and": true, "break": true, "continue": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true, "if": true,
	"in": true, "local": true, "nil": true, "not": true, "or": true, "repeat": true,
	"return": true, "then": true, "true": true, "until": true, "while": true,
}

// IsKeyword reports whether s is a reserved word of the output language.
func IsKeyword(s string) bool {
	return keywords[s]
}

// IsIdentifier reports whether s is a bare identifier that is not a keyword.
func IsIdentifier(s string) bool {
	if s == "" || IsKeyword(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !IsIdentByte(s[i], i == 0) {
			return false
		}
	}
	return true
}

// IsIdentByte reports whether ch may appear in an identifier; digits are not allowed first.
func IsIdentByte(ch byte, first bool) bool {
	switch {
	case ch == '_', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		return true
	case ch >= '0' && ch <= '9':
		return !first
	}
	return false
}
