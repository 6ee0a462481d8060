package irtext

import (
	"strings"
	"unicode"
)

// Token is a lexical token of the plan syntax.
type Token int

const (
	ILLEGAL Token = iota

	EOF
	IDENT
	NUMBER
	STRING
	OP
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	COLON
	ASSIGN
	COMMA
	SEMICOLON
	DOT
)

var tokenNames = map[Token]string{
	ILLEGAL:   "illegal",
	EOF:       "end of input",
	IDENT:     "identifier",
	NUMBER:    "number",
	STRING:    "string",
	OP:        "operator",
	LPAREN:    "'('",
	RPAREN:    "')'",
	LBRACKET:  "'['",
	RBRACKET:  "']'",
	COLON:     "':'",
	ASSIGN:    "':='",
	COMMA:     "','",
	SEMICOLON: "';'",
	DOT:       "'.'",
}

func (t Token) String() string { return tokenNames[t] }

// Scanner splits plan text into tokens. Whitespace and '#' comments are
// skipped.
type Scanner struct {
	src  []rune
	pos  int
	line int
	col  int

	tok     Token
	lit     string
	tokLine int
	tokCol  int
}

// NewScanner creates a scanner over src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: []rune(src), line: 1, col: 1}
}

// Token returns the current token.
func (s *Scanner) Token() Token { return s.tok }

// Literal returns the text of the current token. String literals are
// returned unquoted.
func (s *Scanner) Literal() string { return s.lit }

// Pos returns the line and column where the current token starts.
func (s *Scanner) Pos() (line, col int) { return s.tokLine, s.tokCol }

// Scan advances to the next token.
func (s *Scanner) Scan() Token {
	s.skipSpaceAndComments()
	s.tokLine, s.tokCol = s.line, s.col

	ch := s.read()
	switch {
	case ch == 0:
		s.tok, s.lit = EOF, ""
	case unicode.IsLetter(ch) || ch == '_':
		s.unread()
		s.scanIdentifier()
	case unicode.IsDigit(ch):
		s.unread()
		s.scanNumber()
	case ch == '-' && unicode.IsDigit(s.peek()):
		s.unread()
		s.scanNumber()
	case ch == '"':
		s.scanString()
	case ch == '(':
		s.tok, s.lit = LPAREN, "("
	case ch == ')':
		s.tok, s.lit = RPAREN, ")"
	case ch == '[':
		s.tok, s.lit = LBRACKET, "["
	case ch == ']':
		s.tok, s.lit = RBRACKET, "]"
	case ch == ',':
		s.tok, s.lit = COMMA, ","
	case ch == ';':
		s.tok, s.lit = SEMICOLON, ";"
	case ch == '.':
		s.tok, s.lit = DOT, "."
	case ch == ':':
		if s.peek() == '=' {
			s.read()
			s.tok, s.lit = ASSIGN, ":="
			break
		}
		s.tok, s.lit = COLON, ":"
	case isOperator(ch):
		s.unread()
		s.scanOperator()
	default:
		s.tok, s.lit = ILLEGAL, string(ch)
	}
	return s.tok
}

func (s *Scanner) read() rune {
	if s.pos >= len(s.src) {
		s.pos = len(s.src) + 1
		return 0
	}
	ch := s.src[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

// unread steps back one rune. Never called across a newline.
func (s *Scanner) unread() {
	if s.pos > len(s.src) {
		s.pos = len(s.src)
		return
	}
	s.pos--
	s.col--
}

func (s *Scanner) peek() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *Scanner) skipSpaceAndComments() {
	for {
		ch := s.peek()
		switch {
		case ch == '#':
			for ch != '\n' && ch != 0 {
				s.read()
				ch = s.peek()
			}
		case ch != 0 && unicode.IsSpace(ch):
			s.read()
		default:
			return
		}
	}
}

func (s *Scanner) scanIdentifier() {
	var sb strings.Builder
	for {
		ch := s.read()
		if ch == 0 {
			break
		}
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '_' && !unicode.Is(unicode.Mn, ch) {
			s.unread()
			break
		}
		sb.WriteRune(ch)
	}
	s.tok, s.lit = IDENT, sb.String()
}

func (s *Scanner) scanNumber() {
	var sb strings.Builder
	if s.peek() == '-' {
		sb.WriteRune(s.read())
	}
	for {
		ch := s.peek()
		switch {
		case unicode.IsDigit(ch), ch == '.' && unicode.IsDigit(s.at(1)):
			sb.WriteRune(s.read())
		case (ch == 'e' || ch == 'E') && (unicode.IsDigit(s.at(1)) || s.at(1) == '-' || s.at(1) == '+'):
			sb.WriteRune(s.read())
			sb.WriteRune(s.read())
		default:
			s.tok, s.lit = NUMBER, sb.String()
			return
		}
	}
}

func (s *Scanner) at(offset int) rune {
	if s.pos+offset >= len(s.src) {
		return 0
	}
	return s.src[s.pos+offset]
}

func (s *Scanner) scanString() {
	var sb strings.Builder
	for {
		ch := s.read()
		switch ch {
		case 0, '\n':
			s.tok, s.lit = ILLEGAL, sb.String()
			return
		case '"':
			s.tok, s.lit = STRING, sb.String()
			return
		case '\\':
			esc := s.read()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(ch)
		}
	}
}

func isOperator(ch rune) bool {
	return strings.ContainsRune("+-*/%=<>!", ch)
}

func (s *Scanner) scanOperator() {
	var sb strings.Builder
	for isOperator(s.peek()) {
		sb.WriteRune(s.read())
	}
	s.tok, s.lit = OP, sb.String()
}
