package problog

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads a program in ProbLog surface syntax into a clause database.
//
// Supported syntax: facts, rules, probabilistic annotations (p::h),
// annotated disjunctions (p1::h1 ; p2::h2 :- body), directives (:- goal.),
// lists, quoted atoms, line (%) and block comments, and the standard
// operator table.
func Parse(src string) (*ClauseDB, error) {
	db := NewClauseDB()
	if err := ParseInto(db, src); err != nil {
		return nil, err
	}
	return db, nil
}

// ParseInto appends the clauses of src to db.
func ParseInto(db *ClauseDB, src string) error {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return err
	}
	for p.tok.kind != tokEOF {
		p.vars = make(map[string]*Var)
		t, err := p.parse(1200)
		if err != nil {
			return err
		}
		if p.tok.kind != tokEnd {
			return p.errorf("expected end of clause, found %q", p.tok.text)
		}
		if err := p.advance(); err != nil {
			return err
		}
		if err := addParsed(db, t); err != nil {
			return err
		}
	}
	return nil
}

// ParseTerm parses a single term such as a query goal. A trailing '.' is
// optional.
func ParseTerm(src string) (Term, error) {
	p := &parser{lex: newLexer(src), vars: make(map[string]*Var)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	t, err := p.parse(1200)
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokEnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q after term", p.tok.text)
	}
	return t, nil
}

func addParsed(db *ClauseDB, t Term) error {
	c, ok := t.(*Compound)
	if ok && c.functor == ":-" && len(c.args) == 1 {
		db.AddDirective(c.args[0])
		return nil
	}
	head, body := t, Term(nil)
	if ok && c.functor == ":-" && len(c.args) == 2 {
		head, body = c.args[0], c.args[1]
	}
	clause, err := clauseFromHead(head, body)
	if err != nil {
		return err
	}
	return db.Add(clause)
}

func clauseFromHead(head, body Term) (*Clause, error) {
	if hc, ok := head.(*Compound); ok && hc.functor == ";" && len(hc.args) == 2 {
		var heads []Head
		for _, alt := range flattenOp(head, ";") {
			h, ok := annotated(alt)
			if !ok || h.Probability == nil {
				return nil, fmt.Errorf("%w: disjunctive head %v is not annotated", ErrInvalidDeclaration, alt)
			}
			heads = append(heads, h)
		}
		return NewDisjunction(heads, body), nil
	}
	h, ok := annotated(head)
	if !ok {
		return nil, fmt.Errorf("%w: head %v is not callable", ErrInvalidDeclaration, head)
	}
	if body == nil {
		return NewFact(h.Term, h.Probability), nil
	}
	return NewRule(h.Term, h.Probability, body), nil
}

func annotated(t Term) (Head, bool) {
	if c, ok := t.(*Compound); ok && c.functor == "::" && len(c.args) == 2 {
		if _, _, ok := Indicator(c.args[1]); !ok {
			return Head{}, false
		}
		return Head{Term: c.args[1], Probability: c.args[0]}, true
	}
	if _, _, ok := Indicator(t); !ok {
		return Head{}, false
	}
	return Head{Term: t}, true
}

// flattenOp splits a right-nested chain of a binary operator.
func flattenOp(t Term, op string) []Term {
	var out []Term
	for {
		c, ok := t.(*Compound)
		if !ok || c.functor != op || len(c.args) != 2 {
			return append(out, t)
		}
		out = append(out, flattenOp(c.args[0], op)...)
		t = c.args[1]
	}
}

// Operator table.

type opType int

const (
	xfx opType = iota
	xfy
	yfx
	fy
	fx
)

type opDef struct {
	priority int
	typ      opType
}

var infixOps = map[string]opDef{
	":-": {1200, xfx}, "-->": {1200, xfx},
	";": {1100, xfy}, "|": {1100, xfy},
	"->": {1050, xfy},
	",":  {1000, xfy},
	"::": {950, xfx},
	"=": {700, xfx}, `\=`: {700, xfx}, "==": {700, xfx}, `\==`: {700, xfx},
	"<": {700, xfx}, ">": {700, xfx}, "=<": {700, xfx}, ">=": {700, xfx},
	"=:=": {700, xfx}, `=\=`: {700, xfx}, "is": {700, xfx}, "~": {700, xfx},
	"@<": {700, xfx}, "@>": {700, xfx}, "@=<": {700, xfx}, "@>=": {700, xfx},
	"=..": {700, xfx},
	"+": {500, yfx}, "-": {500, yfx},
	"*": {400, yfx}, "/": {400, yfx}, "//": {400, yfx}, "mod": {400, yfx},
	"**": {200, xfx}, "^": {200, xfy},
}

var prefixOps = map[string]opDef{
	":-": {1200, fx}, "?-": {1200, fx},
	`\+`: {900, fy},
	"-": {200, fy}, "+": {200, fy},
}

// Lexer.

type tokKind int

const (
	tokEOF tokKind = iota
	tokEnd
	tokName
	tokQuoted
	tokVar
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind   tokKind
	text   string
	line   int
	col    int
	layout bool // whitespace precedes the token
}

type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

func (l *lexer) peekRune(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) next() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) errorf(format string, args ...interface{}) error {
	return &ParseError{Line: l.line, Column: l.col, Msg: fmt.Sprintf(format, args...)}
}

// skipLayout consumes whitespace and comments and reports whether any was
// found.
func (l *lexer) skipLayout() (bool, error) {
	skipped := false
	for l.pos < len(l.src) {
		r := l.peekRune(0)
		switch {
		case unicode.IsSpace(r):
			l.next()
		case r == '%':
			for l.pos < len(l.src) && l.peekRune(0) != '\n' {
				l.next()
			}
		case r == '/' && l.peekRune(1) == '*':
			l.next()
			l.next()
			for {
				if l.pos >= len(l.src) {
					return skipped, l.errorf("unterminated block comment")
				}
				if l.peekRune(0) == '*' && l.peekRune(1) == '/' {
					l.next()
					l.next()
					break
				}
				l.next()
			}
		default:
			return skipped, nil
		}
		skipped = true
	}
	return skipped, nil
}

func isAlnum(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) token() (token, error) {
	layout, err := l.skipLayout()
	if err != nil {
		return token{}, err
	}
	tok := token{line: l.line, col: l.col, layout: layout}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		return tok, nil
	}
	r := l.peekRune(0)
	start := l.pos
	switch {
	case unicode.IsDigit(r):
		tok.kind = tokNumber
		for unicode.IsDigit(l.peekRune(0)) {
			l.next()
		}
		if l.peekRune(0) == '.' && unicode.IsDigit(l.peekRune(1)) {
			l.next()
			for unicode.IsDigit(l.peekRune(0)) {
				l.next()
			}
		}
		if e := l.peekRune(0); e == 'e' || e == 'E' {
			off := 1
			if s := l.peekRune(1); s == '+' || s == '-' {
				off = 2
			}
			if unicode.IsDigit(l.peekRune(off)) {
				for i := 0; i < off; i++ {
					l.next()
				}
				for unicode.IsDigit(l.peekRune(0)) {
					l.next()
				}
			}
		}
	case r == '_' || unicode.IsUpper(r):
		tok.kind = tokVar
		for isAlnum(l.peekRune(0)) {
			l.next()
		}
	case unicode.IsLetter(r):
		tok.kind = tokName
		for isAlnum(l.peekRune(0)) {
			l.next()
		}
	case r == '\'' || r == '"':
		text, err := l.quoted(r)
		if err != nil {
			return token{}, err
		}
		tok.text = text
		if r == '"' {
			tok.kind = tokString
		} else {
			tok.kind = tokQuoted
		}
		return tok, nil
	case strings.ContainsRune("()[]{},|", r):
		l.next()
		tok.kind = tokPunct
		if r == '|' && l.peekRune(0) == '|' {
			l.next()
			tok.kind = tokName
		}
	case r == '!' || r == ';':
		l.next()
		tok.kind = tokName
	case strings.ContainsRune(symbolChars, r):
		for l.pos < len(l.src) && strings.ContainsRune(symbolChars, l.peekRune(0)) {
			l.next()
		}
		tok.kind = tokName
		if l.pos-start == 1 && r == '.' {
			if n := l.peekRune(0); n == 0 || unicode.IsSpace(n) || n == '%' {
				tok.kind = tokEnd
			}
		}
	default:
		return token{}, l.errorf("unexpected character %q", r)
	}
	tok.text = string(l.src[start:l.pos])
	return tok, nil
}

func (l *lexer) quoted(q rune) (string, error) {
	l.next()
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", l.errorf("unterminated quoted text")
		}
		r := l.next()
		switch {
		case r == q && l.peekRune(0) == q:
			l.next()
			sb.WriteRune(q)
		case r == q:
			return sb.String(), nil
		case r == '\\' && l.pos < len(l.src):
			e := l.next()
			switch e {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '\n':
			default:
				sb.WriteRune(e)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

// Parser.

type parser struct {
	lex  *lexer
	tok  token
	vars map[string]*Var
}

func (p *parser) advance() error {
	t, err := p.lex.token()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Line: p.tok.line, Column: p.tok.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(text string) error {
	if p.tok.kind != tokPunct || p.tok.text != text {
		return p.errorf("expected %q, found %q", text, p.tok.text)
	}
	return p.advance()
}

// infixName returns the operator name of the current token if it can act
// as an infix operator.
func (p *parser) infixName() (string, bool) {
	switch p.tok.kind {
	case tokName:
		_, ok := infixOps[p.tok.text]
		return p.tok.text, ok
	case tokPunct:
		if p.tok.text == "," || p.tok.text == "|" {
			return p.tok.text, true
		}
	}
	return "", false
}

// startsTerm reports whether the current token can begin an operand.
func (p *parser) startsTerm() bool {
	switch p.tok.kind {
	case tokEOF, tokEnd:
		return false
	case tokPunct:
		return p.tok.text == "(" || p.tok.text == "[" || p.tok.text == "{"
	case tokName:
		if _, ok := infixOps[p.tok.text]; ok {
			_, pre := prefixOps[p.tok.text]
			return pre
		}
	}
	return true
}

func (p *parser) parse(maxPrec int) (Term, error) {
	left, leftPrec, err := p.parsePrimary(maxPrec)
	if err != nil {
		return nil, err
	}
	for {
		name, ok := p.infixName()
		if !ok {
			return left, nil
		}
		op := infixOps[name]
		if op.priority > maxPrec {
			return left, nil
		}
		leftMax, rightMax := op.priority-1, op.priority-1
		switch op.typ {
		case xfy:
			rightMax = op.priority
		case yfx:
			leftMax = op.priority
		}
		if leftPrec > leftMax {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parse(rightMax)
		if err != nil {
			return nil, err
		}
		if name == "|" {
			name = ";"
		}
		left = &Compound{functor: name, args: []Term{left, right}}
		leftPrec = op.priority
	}
}

func (p *parser) parsePrimary(maxPrec int) (Term, int, error) {
	tok := p.tok
	switch tok.kind {
	case tokNumber:
		if err := p.advance(); err != nil {
			return nil, 0, err
		}
		n, err := parseNumber(tok.text)
		if err != nil {
			return nil, 0, &ParseError{Line: tok.line, Column: tok.col, Msg: err.Error()}
		}
		return n, 0, nil
	case tokVar:
		if err := p.advance(); err != nil {
			return nil, 0, err
		}
		if tok.text == "_" {
			return Fresh("_"), 0, nil
		}
		v, ok := p.vars[tok.text]
		if !ok {
			v = Fresh(tok.text)
			p.vars[tok.text] = v
		}
		return v, 0, nil
	case tokString:
		if err := p.advance(); err != nil {
			return nil, 0, err
		}
		return NewAtom(tok.text), 0, nil
	case tokPunct:
		switch tok.text {
		case "(":
			if err := p.advance(); err != nil {
				return nil, 0, err
			}
			t, err := p.parse(1200)
			if err != nil {
				return nil, 0, err
			}
			if err := p.expect(")"); err != nil {
				return nil, 0, err
			}
			return t, 0, nil
		case "[":
			t, err := p.parseList()
			return t, 0, err
		case ",":
			return nil, 0, p.errorf("unexpected ','")
		}
		return nil, 0, p.errorf("unexpected %q", tok.text)
	case tokName, tokQuoted:
		if err := p.advance(); err != nil {
			return nil, 0, err
		}
		if p.tok.kind == tokPunct && p.tok.text == "(" && !p.tok.layout {
			args, err := p.parseArgs()
			if err != nil {
				return nil, 0, err
			}
			return &Compound{functor: tok.text, args: args}, 0, nil
		}
		if tok.kind == tokName {
			if tok.text == "-" && p.tok.kind == tokNumber && !p.tok.layout {
				num := p.tok
				if err := p.advance(); err != nil {
					return nil, 0, err
				}
				n, err := parseNumber("-" + num.text)
				if err != nil {
					return nil, 0, &ParseError{Line: num.line, Column: num.col, Msg: err.Error()}
				}
				return n, 0, nil
			}
			if op, ok := prefixOps[tok.text]; ok && p.startsTerm() {
				prec := op.priority
				if prec > maxPrec {
					prec = 999
				}
				argMax := prec - 1
				if op.typ == fy {
					argMax = prec
				}
				arg, err := p.parse(argMax)
				if err != nil {
					return nil, 0, err
				}
				return &Compound{functor: tok.text, args: []Term{arg}}, prec, nil
			}
		}
		return NewAtom(tok.text), 0, nil
	case tokEnd:
		return nil, 0, p.errorf("unexpected end of clause")
	default:
		return nil, 0, p.errorf("unexpected end of input")
	}
}

func (p *parser) parseArgs() ([]Term, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var args []Term
	for {
		a, err := p.parse(999)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.tok.kind == tokPunct && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) parseList() (Term, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokPunct && p.tok.text == "]" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Nil, nil
	}
	var elems []Term
	var tail Term = Nil
	for {
		e, err := p.parse(999)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.tok.kind == tokPunct && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.tok.kind == tokPunct && p.tok.text == "|" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if tail, err = p.parse(999); err != nil {
				return nil, err
			}
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		break
	}
	out := tail
	for i := len(elems) - 1; i >= 0; i-- {
		out = &Compound{functor: ".", args: []Term{elems[i], out}}
	}
	return out, nil
}

func parseNumber(text string) (*Number, error) {
	if !strings.ContainsAny(text, ".eE") {
		i, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return NewInt(i), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return NewFloat(f), nil
}
