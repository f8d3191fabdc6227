package query

import (
	"strings"
	"unicode"
)

// Lexer tokenizes SQL query strings
type Lexer struct {
	input string
	pos   int
	ch    rune
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character
func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = rune(l.input[l.pos])
	}
	l.pos++
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return rune(l.input[l.pos])
}

// offset returns the byte offset of the current character
func (l *Lexer) offset() int {
	return l.pos - 1
}

// skipWhitespace skips whitespace and SQL comments (-- line and /* block */)
func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar() // skip *
				l.readChar() // skip /
			}
		default:
			return
		}
	}
}

// readString reads a quoted string. A doubled quote inside the string is an
// escaped quote, as in standard SQL; a backslash is an ordinary character.
// ok is false when the input ends before the closing quote.
func (l *Lexer) readString(quote rune) (value string, ok bool) {
	var result strings.Builder
	l.readChar() // skip opening quote

	for l.ch != 0 {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(byte(quote))
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String(), true
		}
		result.WriteByte(byte(l.ch))
		l.readChar()
	}

	return result.String(), false
}

// readQuoted emits a quoted token of type typ, or an error token carrying
// the unterminated text
func (l *Lexer) readQuoted(tok Token, typ TokenType) Token {
	start := tok.Pos
	value, ok := l.readString(l.ch)
	if !ok {
		tok.Type, tok.Value = TokenError, l.input[start:]
		return tok
	}
	tok.Type, tok.Value = typ, value
	return tok
}

// readNumber reads an unsigned number; signs are handled by the parser
func (l *Lexer) readNumber() string {
	var result strings.Builder
	for unicode.IsDigit(l.ch) || l.ch == '.' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// readIdentifier reads an identifier or keyword. Dots are kept so that
// qualified names (schema.table, alias.column, alias.*) arrive as one token.
func (l *Lexer) readIdentifier() string {
	var result strings.Builder
	for unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' || l.ch == '.' || l.ch == '$' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	// alias.* selects every column of one source
	if strings.HasSuffix(result.String(), ".") && l.ch == '*' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	tok := Token{Pos: l.offset()}

	switch l.ch {
	case 0:
		tok.Type, tok.Value = TokenEOF, ""
		tok.Pos = len(l.input)
	case '=':
		tok.Type, tok.Value = TokenEqual, "="
		l.readChar()
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Value = TokenNotEqual, "!="
			l.readChar()
		} else {
			tok.Type, tok.Value = TokenError, "!"
			l.readChar()
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok.Type, tok.Value = TokenLessEqual, "<="
			l.readChar()
		case '>':
			l.readChar()
			tok.Type, tok.Value = TokenNotEqual, "<>"
			l.readChar()
		default:
			tok.Type, tok.Value = TokenLess, "<"
			l.readChar()
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Value = TokenGreaterEqual, ">="
			l.readChar()
		} else {
			tok.Type, tok.Value = TokenGreater, ">"
			l.readChar()
		}
	case '\'':
		return l.readQuoted(tok, TokenString)
	case '"', '`':
		// Quoted identifiers keep their spelling verbatim
		return l.readQuoted(tok, TokenQuotedIdent)
	case '*':
		tok.Type, tok.Value = TokenStar, "*"
		l.readChar()
	case '+':
		tok.Type, tok.Value = TokenPlus, "+"
		l.readChar()
	case '-':
		tok.Type, tok.Value = TokenMinus, "-"
		l.readChar()
	case '/':
		tok.Type, tok.Value = TokenSlash, "/"
		l.readChar()
	case '%':
		tok.Type, tok.Value = TokenPercent, "%"
		l.readChar()
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok.Type, tok.Value = TokenConcat, "||"
			l.readChar()
		} else {
			tok.Type, tok.Value = TokenError, "|"
			l.readChar()
		}
	case ',':
		tok.Type, tok.Value = TokenComma, ","
		l.readChar()
	case '(':
		tok.Type, tok.Value = TokenLeftParen, "("
		l.readChar()
	case ')':
		tok.Type, tok.Value = TokenRightParen, ")"
		l.readChar()
	case ';':
		tok.Type, tok.Value = TokenSemicolon, ";"
		l.readChar()
	default:
		if unicode.IsDigit(l.ch) || (l.ch == '.' && unicode.IsDigit(l.peekChar())) {
			tok.Type, tok.Value = TokenNumber, l.readNumber()
		} else if unicode.IsLetter(l.ch) || l.ch == '_' {
			value := l.readIdentifier()
			tok.Type, tok.Value = identifierType(value), value
		} else {
			tok.Type, tok.Value = TokenError, string(l.ch)
			l.readChar()
		}
	}

	return tok
}

// keywords maps lower-cased keywords to their token types
var keywords = map[string]TokenType{
	"select":    TokenSelect,
	"from":      TokenFrom,
	"where":     TokenWhere,
	"and":       TokenAnd,
	"or":        TokenOr,
	"as":        TokenAs,
	"group":     TokenGroup,
	"by":        TokenBy,
	"having":    TokenHaving,
	"order":     TokenOrder,
	"asc":       TokenAsc,
	"desc":      TokenDesc,
	"limit":     TokenLimit,
	"offset":    TokenOffset,
	"in":        TokenIn,
	"like":      TokenLike,
	"between":   TokenBetween,
	"is":        TokenIs,
	"not":       TokenNot,
	"null":      TokenNull,
	"distinct":  TokenDistinct,
	"case":      TokenCase,
	"when":      TokenWhen,
	"then":      TokenThen,
	"else":      TokenElse,
	"end":       TokenEnd,
	"over":      TokenOver,
	"partition": TokenPartition,
	"rows":      TokenRows,
	"range":     TokenRange,
	"with":      TokenWith,
	"recursive": TokenRecursive,
	"exists":    TokenExists,
	"join":      TokenJoin,
	"inner":     TokenInner,
	"left":      TokenLeft,
	"right":     TokenRight,
	"full":      TokenFull,
	"outer":     TokenOuter,
	"cross":     TokenCross,
	"on":        TokenOn,
	"true":      TokenBool,
	"false":     TokenBool,
}

// identifierType determines if an identifier is a keyword. Keywords are
// case-insensitive.
func identifierType(ident string) TokenType {
	if tokType, ok := keywords[strings.ToLower(ident)]; ok {
		return tokType
	}
	return TokenIdent
}

// Tokenize returns all tokens from the input
func Tokenize(input string) []Token {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok := lexer.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}

	return tokens
}
