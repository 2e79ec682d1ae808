package core

const (
	LexiName          = "LexiBot"
	LexiUserAgent     = "LexiBot/0.1"
	LexiRepositoryURL = "https://github.com/sandevgo/lexibot"
	LexiVersion       = "0.1.0"
)

// MaxThemeLength is the longest accepted theme text, in runes.
const MaxThemeLength = 100
