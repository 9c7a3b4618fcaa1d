package query

import (
	"fmt"
	"strings"
)

// Parse parses one query string into its AST.
//
// It returns *ParseError for malformed text and *UnknownEntityError
// when a valid query names an entity outside the closed set. Both fail
// before any graph access.
func Parse(text string) (*Query, error) {
	toks, lerr := lex(text)
	if lerr != nil {
		return nil, lerr
	}
	p := &parser{toks: toks}

	lead := p.peek()
	if lead.typ != tokIdent {
		return nil, p.errorf(lead, "expected a query keyword (SELECT, FIND, SHOW, PATH, ANALYZE, HISTORY, BLAME)")
	}

	var (
		q   *Query
		err error
	)
	switch strings.ToLower(lead.val) {
	case "select":
		q, err = p.parseSelect()
	case "find":
		q, err = p.parseFind()
	case "show":
		q, err = p.parseShow()
	case "path":
		q, err = p.parsePath()
	case "analyze":
		q, err = p.parseAnalyze()
	case "history":
		q, err = p.parseHistory()
	case "blame":
		q, err = p.parseBlame()
	default:
		return nil, p.errorf(lead, "unknown query keyword %q", lead.val)
	}
	if err != nil {
		return nil, err
	}

	if q.Temporal, err = p.parseTemporal(); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokEOF {
		return nil, p.errorf(tok, "unexpected trailing input %q", tok.val)
	}
	return q, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.typ != tokEOF {
		p.i++
	}
	return t
}

// acceptKeyword consumes the next token when it is the given keyword.
func (p *parser) acceptKeyword(kw string) bool {
	if p.peek().isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorf(p.peek(), "expected %s", strings.ToUpper(kw))
	}
	return nil
}

func (p *parser) errorf(tok token, format string, args ...any) *ParseError {
	return &ParseError{Position: tok.pos, Message: fmt.Sprintf(format, args...)}
}

// parseRef reads a node reference: a bare identifier, a quoted string,
// or a bare number (short commit hashes lex as numbers).
func (p *parser) parseRef(what string) (string, error) {
	tok := p.peek()
	switch tok.typ {
	case tokIdent, tokString, tokNumber:
		p.next()
		return tok.val, nil
	default:
		return "", p.errorf(tok, "expected %s reference", what)
	}
}

func (p *parser) parseSelect() (*Query, error) {
	p.next() // SELECT

	stmt := &SelectStmt{Limit: -1}

	// Column list: * or ident[, ident...]
	if p.peek().typ == tokStar {
		p.next()
	} else {
		for {
			tok := p.next()
			if tok.typ != tokIdent {
				return nil, p.errorf(tok, "expected column name")
			}
			stmt.Columns = append(stmt.Columns, strings.ToLower(tok.val))
			if p.peek().typ != tokComma {
				break
			}
			p.next()
		}
	}

	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	ent, err := p.parseEntity()
	if err != nil {
		return nil, err
	}
	stmt.Entity = ent

	if err := p.parseFilterClauses(stmt); err != nil {
		return nil, err
	}
	return &Query{Kind: KindSelect, Select: stmt}, nil
}

func (p *parser) parseFind() (*Query, error) {
	p.next() // FIND

	stmt := &SelectStmt{Limit: -1}
	ent, err := p.parseEntity()
	if err != nil {
		return nil, err
	}
	stmt.Entity = ent

	for _, rel := range []RelationKind{RelCalling, RelImplementing, RelImporting} {
		if p.acceptKeyword(string(rel)) {
			ref, err := p.parseRef(string(rel))
			if err != nil {
				return nil, err
			}
			stmt.Relation = &RelationPred{Kind: rel, Ref: ref}
			break
		}
	}

	if err := p.parseFilterClauses(stmt); err != nil {
		return nil, err
	}
	return &Query{Kind: KindFind, Select: stmt}, nil
}

func (p *parser) parseEntity() (Entity, error) {
	tok := p.next()
	if tok.typ != tokIdent {
		return "", p.errorf(tok, "expected entity name")
	}
	name := strings.ToLower(tok.val)
	if !ValidEntity(name) {
		return "", &UnknownEntityError{Name: tok.val}
	}
	return Entity(name), nil
}

// parseFilterClauses reads the optional WHERE / ORDER BY / LIMIT tail
// shared by SELECT and FIND.
func (p *parser) parseFilterClauses(stmt *SelectStmt) error {
	if p.acceptKeyword("where") {
		expr, err := p.parseOr()
		if err != nil {
			return err
		}
		stmt.Where = expr
	}
	if p.peek().isKeyword("order") {
		p.next()
		if err := p.expectKeyword("by"); err != nil {
			return err
		}
		for {
			tok := p.next()
			if tok.typ != tokIdent {
				return p.errorf(tok, "expected ORDER BY attribute")
			}
			key := OrderKey{Attr: strings.ToLower(tok.val)}
			if p.acceptKeyword("desc") {
				key.Desc = true
			} else {
				p.acceptKeyword("asc")
			}
			stmt.OrderBy = append(stmt.OrderBy, key)
			if p.peek().typ != tokComma {
				break
			}
			p.next()
		}
	}
	if p.acceptKeyword("limit") {
		n, err := p.parseCount("LIMIT")
		if err != nil {
			return err
		}
		stmt.Limit = n
	}
	return nil
}

func (p *parser) parseCount(clause string) (int, error) {
	tok := p.next()
	if tok.typ != tokNumber || tok.num < 0 || tok.num != float64(int(tok.num)) {
		return 0, p.errorf(tok, "expected non-negative integer after %s", clause)
	}
	return int(tok.num), nil
}

// parseOr implements: expr := and (OR and)*
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

// parseAnd implements: and := primary (AND primary)*
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("and") {
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

// parsePrimary implements:
//
//	primary := '(' expr ')' | attr cmp literal | attr LIKE string
func (p *parser) parsePrimary() (Expr, error) {
	if p.peek().typ == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.typ != tokRParen {
			return nil, p.errorf(tok, "expected closing parenthesis")
		}
		return inner, nil
	}

	attrTok := p.next()
	if attrTok.typ != tokIdent {
		return nil, p.errorf(attrTok, "expected attribute name in WHERE clause")
	}
	attr := strings.ToLower(attrTok.val)

	if p.acceptKeyword("like") {
		patTok := p.next()
		if patTok.typ != tokString && patTok.typ != tokIdent {
			return nil, p.errorf(patTok, "expected LIKE pattern")
		}
		return &LikeExpr{Attr: attr, Pattern: patTok.val}, nil
	}

	opTok := p.next()
	if opTok.typ != tokOp {
		return nil, p.errorf(opTok, "expected comparison operator or LIKE after %q", attrTok.val)
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &CompareExpr{Attr: attr, Op: CmpOp(opTok.val), Value: lit}, nil
}

func (p *parser) parseLiteral() (Literal, error) {
	tok := p.next()
	switch {
	case tok.typ == tokString:
		return StringLit(tok.val), nil
	case tok.typ == tokNumber:
		return NumberLit(tok.num), nil
	case tok.isKeyword("true"):
		return BoolLit(true), nil
	case tok.isKeyword("false"):
		return BoolLit(false), nil
	case tok.typ == tokIdent:
		// Bare word literal, e.g. type = function.
		return StringLit(tok.val), nil
	default:
		return Literal{}, p.errorf(tok, "expected literal value")
	}
}

var showKinds = []ShowKind{
	ShowDependencies, ShowDependents, ShowCallers,
	ShowCallees, ShowImpact, ShowAncestors,
}

func (p *parser) parseShow() (*Query, error) {
	p.next() // SHOW

	kindTok := p.next()
	if kindTok.typ != tokIdent {
		return nil, p.errorf(kindTok, "expected SHOW kind")
	}
	var kind ShowKind
	for _, k := range showKinds {
		if strings.EqualFold(string(k), kindTok.val) {
			kind = k
			break
		}
	}
	if kind == "" {
		return nil, p.errorf(kindTok,
			"unknown SHOW kind %q (valid: dependencies, dependents, callers, callees, impact, ancestors)",
			kindTok.val)
	}

	if err := p.expectKeyword("of"); err != nil {
		return nil, err
	}
	ref, err := p.parseRef("symbol")
	if err != nil {
		return nil, err
	}
	stmt := &ShowStmt{Kind: kind, Ref: ref}

	for {
		switch {
		case p.acceptKeyword("depth"):
			n, err := p.parseCount("DEPTH")
			if err != nil {
				return nil, err
			}
			stmt.Depth = n
		case p.acceptKeyword("type"):
			types, err := p.parseIdentList("edge type")
			if err != nil {
				return nil, err
			}
			stmt.EdgeTypes = types
		default:
			return &Query{Kind: KindShow, Show: stmt}, nil
		}
	}
}

func (p *parser) parseIdentList(what string) ([]string, error) {
	var list []string
	for {
		tok := p.next()
		if tok.typ != tokIdent {
			return nil, p.errorf(tok, "expected %s", what)
		}
		list = append(list, strings.ToLower(tok.val))
		if p.peek().typ != tokComma {
			return list, nil
		}
		p.next()
	}
}

func (p *parser) parsePath() (*Query, error) {
	p.next() // PATH
	p.acceptKeyword("from")

	from, err := p.parseRef("source")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("to"); err != nil {
		return nil, err
	}
	to, err := p.parseRef("target")
	if err != nil {
		return nil, err
	}

	stmt := &PathStmt{From: from, To: to}
	p.acceptKeyword("max")
	if p.acceptKeyword("depth") {
		n, err := p.parseCount("DEPTH")
		if err != nil {
			return nil, err
		}
		stmt.MaxDepth = n
	}
	return &Query{Kind: KindPath, Path: stmt}, nil
}

func (p *parser) parseAnalyze() (*Query, error) {
	p.next() // ANALYZE

	kindTok := p.next()
	if kindTok.typ != tokIdent || !strings.EqualFold(kindTok.val, "circular") {
		return nil, p.errorf(kindTok, "expected ANALYZE kind (circular)")
	}
	stmt := &AnalyzeStmt{Kind: "circular"}

	if p.acceptKeyword("type") {
		types, err := p.parseIdentList("edge type")
		if err != nil {
			return nil, err
		}
		stmt.EdgeTypes = types
	}
	return &Query{Kind: KindAnalyze, Analyze: stmt}, nil
}

func (p *parser) parseHistory() (*Query, error) {
	p.next() // HISTORY
	p.acceptKeyword("of")

	ref, err := p.parseRef("symbol")
	if err != nil {
		return nil, err
	}
	stmt := &HistoryStmt{Ref: ref, Limit: -1}

	if p.acceptKeyword("limit") {
		n, err := p.parseCount("LIMIT")
		if err != nil {
			return nil, err
		}
		stmt.Limit = n
	}
	switch {
	case p.acceptKeyword("asc"):
		stmt.Order = OrderOldestFirst
	case p.acceptKeyword("desc"):
		stmt.Order = OrderNewestFirst
	}
	return &Query{Kind: KindHistory, History: stmt}, nil
}

func (p *parser) parseBlame() (*Query, error) {
	p.next() // BLAME
	p.acceptKeyword("of")

	ref, err := p.parseRef("symbol")
	if err != nil {
		return nil, err
	}
	return &Query{Kind: KindBlame, Blame: &BlameStmt{Ref: ref}}, nil
}

// parseTemporal reads the optional shared temporal suffix:
// AT <ref> | BETWEEN <ref> AND <ref>.
func (p *parser) parseTemporal() (*TemporalClause, error) {
	switch {
	case p.acceptKeyword("at"):
		ref, err := p.parseRef("commit")
		if err != nil {
			return nil, err
		}
		return &TemporalClause{Kind: TemporalAt, At: ref}, nil
	case p.acceptKeyword("between"):
		lo, err := p.parseRef("commit")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("and"); err != nil {
			return nil, err
		}
		hi, err := p.parseRef("commit")
		if err != nil {
			return nil, err
		}
		return &TemporalClause{Kind: TemporalBetween, At: lo, Until: hi}, nil
	default:
		return nil, nil
	}
}
