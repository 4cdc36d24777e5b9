// Package parser implements a recursive-descent, precedence-climbing parser
// that turns a lexer.Lexer token stream into an *ast.Program. It accepts two
// surface syntaxes for blocks (brace-delimited and Lua-style keyword-delimited)
// but requires a single construct to pick one consistently: an if opened with
// `{` must close with `}`, never `end`.
package parser

import (
	"fmt"
	"strconv"

	"github.com/wudi/gza/ast"
	"github.com/wudi/gza/lexer"
)

// ParseError reports a syntax error with source position.
type ParseError struct {
	Message  string
	Position lexer.Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s at %s", e.Message, e.Position)
}

type Parser struct {
	l    *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
	errs []error
}

func New(l *lexer.Lexer) (*Parser, error) {
	p := &Parser{l: l}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) next() error {
	p.cur = p.peek
	tok, err := p.l.Next()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

// skipNewlines consumes any run of statement-separating newlines/semicolons.
func (p *Parser) skipNewlines() error {
	for p.cur.Type == lexer.TOKEN_NEWLINE || p.cur.Type == lexer.TOKEN_SEMI {
		if err := p.next(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if p.cur.Type != tt {
		return lexer.Token{}, &ParseError{
			Message:  fmt.Sprintf("expected %s, got %s %q", tt, p.cur.Type, p.cur.Literal),
			Position: p.cur.Position,
		}
	}
	tok := p.cur
	return tok, p.next()
}

// ParseProgram parses the whole input. The lexer's first two tokens were
// already primed by New.
func ParseProgram(src string) (*ast.Program, error) {
	l := lexer.New(src)
	p, err := New(l)
	if err != nil {
		return nil, err
	}
	return p.parseProgram()
}

// ParseProgram parses the whole token stream this Parser was constructed
// with into a Program. Exported so a caller that already built a Parser
// (e.g. to control lexer construction) doesn't need the package-level
// ParseProgram(src string) convenience function.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	return p.parseProgram()
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	for p.cur.Type != lexer.TOKEN_EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur.Type {
	case lexer.TOKEN_VAR:
		return p.parseVarDecl()
	case lexer.TOKEN_LOCAL:
		return p.parseLocalDecl()
	case lexer.TOKEN_IF:
		return p.parseIf()
	case lexer.TOKEN_WHILE:
		return p.parseWhile()
	case lexer.TOKEN_REPEAT:
		return p.parseRepeat()
	case lexer.TOKEN_FOR:
		return p.parseFor()
	case lexer.TOKEN_FUNCTION:
		return p.parseFunctionDecl()
	case lexer.TOKEN_RETURN:
		return p.parseReturn()
	case lexer.TOKEN_BREAK:
		pos := p.cur.Position
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Position: pos}, nil
	case lexer.TOKEN_CONTINUE:
		pos := p.cur.Position
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{Position: pos}, nil
	case lexer.TOKEN_LBRACE:
		return p.parseBlock("{", "}")
	default:
		return p.parseExprOrAssignStatement()
	}
}

func (p *Parser) parseVarDecl() (ast.Statement, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.TOKEN_IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.VarDecl{Position: pos, Name: nameTok.Literal}
	if p.cur.Type == lexer.TOKEN_ASSIGN {
		if err := p.next(); err != nil {
			return nil, err
		}
		val, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		decl.Value = val
	}
	return decl, nil
}

func (p *Parser) parseLocalDecl() (ast.Statement, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	decl := &ast.LocalDecl{Position: pos}
	for {
		nameTok, err := p.expect(lexer.TOKEN_IDENT)
		if err != nil {
			return nil, err
		}
		decl.Names = append(decl.Names, nameTok.Literal)
		if p.cur.Type != lexer.TOKEN_COMMA {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if p.cur.Type == lexer.TOKEN_ASSIGN {
		if err := p.next(); err != nil {
			return nil, err
		}
		for {
			val, err := p.parseExpression(LOWEST)
			if err != nil {
				return nil, err
			}
			decl.Values = append(decl.Values, val)
			if p.cur.Type != lexer.TOKEN_COMMA {
				break
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	return decl, nil
}

// parseBlockBody parses statements up to (but not consuming) one of the
// given terminator keywords/tokens, used for both brace and keyword forms.
func (p *Parser) parseBlockBody(isEnd func(lexer.TokenType) bool) (*ast.Block, error) {
	pos := p.cur.Position
	block := &ast.Block{Position: pos}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	for p.cur.Type != lexer.TOKEN_EOF && !isEnd(p.cur.Type) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
	}
	return block, nil
}

// parseBlock parses a brace-delimited `{ ... }` block, consuming both braces.
func (p *Parser) parseBlock(open, close string) (*ast.Block, error) {
	if _, err := p.expect(lexer.TOKEN_LBRACE); err != nil {
		return nil, err
	}
	block, err := p.parseBlockBody(func(tt lexer.TokenType) bool { return tt == lexer.TOKEN_RBRACE })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TOKEN_RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

// parseBody parses either a `{ ... }` block or a keyword-delimited body,
// ending at any token in terms (consumed by the caller). A leading `{`
// always selects the brace form, even after `then`/`do`, so the caller's
// closing `end` check still runs and a form such as `if c then { ... } end`
// is accepted.
func (p *Parser) parseBody(terms ...lexer.TokenType) (*ast.Block, error) {
	if p.cur.Type == lexer.TOKEN_LBRACE {
		return p.parseBlock("{", "}")
	}
	// Keyword style: optional leading `do`/`then` already consumed by caller.
	isEnd := func(tt lexer.TokenType) bool {
		for _, t := range terms {
			if tt == t {
				return true
			}
		}
		return false
	}
	return p.parseBlockBody(isEnd)
}

func (p *Parser) parseIf() (ast.Statement, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	keywordStyle := p.cur.Type == lexer.TOKEN_THEN
	if keywordStyle {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	then, err := p.parseBody(lexer.TOKEN_ELSEIF, lexer.TOKEN_ELSE, lexer.TOKEN_END)
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Position: pos, Cond: cond, Then: then}
	for p.cur.Type == lexer.TOKEN_ELSEIF {
		if err := p.next(); err != nil {
			return nil, err
		}
		eCond, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		if keywordStyle {
			if _, err := p.expect(lexer.TOKEN_THEN); err != nil {
				return nil, err
			}
		}
		eBody, err := p.parseBody(lexer.TOKEN_ELSEIF, lexer.TOKEN_ELSE, lexer.TOKEN_END)
		if err != nil {
			return nil, err
		}
		stmt.ElseIfs = append(stmt.ElseIfs, &ast.ElseIf{Cond: eCond, Then: eBody})
	}
	if p.cur.Type == lexer.TOKEN_ELSE {
		if err := p.next(); err != nil {
			return nil, err
		}
		elseBody, err := p.parseBody(lexer.TOKEN_END)
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	if keywordStyle {
		if _, err := p.expect(lexer.TOKEN_END); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Statement, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	keywordStyle := p.cur.Type == lexer.TOKEN_DO
	if keywordStyle {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	body, err := p.parseBody(lexer.TOKEN_END)
	if err != nil {
		return nil, err
	}
	if keywordStyle {
		if _, err := p.expect(lexer.TOKEN_END); err != nil {
			return nil, err
		}
	}
	return &ast.WhileStmt{Position: pos, Cond: cond, Body: body}, nil
}

func (p *Parser) parseRepeat() (ast.Statement, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	body, err := p.parseBlockBody(func(tt lexer.TokenType) bool { return tt == lexer.TOKEN_UNTIL })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TOKEN_UNTIL); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	return &ast.RepeatStmt{Position: pos, Body: body, Cond: cond}, nil
}

func (p *Parser) parseFor() (ast.Statement, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	firstTok, err := p.expect(lexer.TOKEN_IDENT)
	if err != nil {
		return nil, err
	}
	if p.cur.Type == lexer.TOKEN_ASSIGN {
		// Numeric for: for i = start, stop[, step] { ... }
		if err := p.next(); err != nil {
			return nil, err
		}
		start, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TOKEN_COMMA); err != nil {
			return nil, err
		}
		stop, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		var step ast.Expression
		if p.cur.Type == lexer.TOKEN_COMMA {
			if err := p.next(); err != nil {
				return nil, err
			}
			step, err = p.parseExpression(LOWEST)
			if err != nil {
				return nil, err
			}
		}
		keywordStyle := p.cur.Type == lexer.TOKEN_DO
		if keywordStyle {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		body, err := p.parseBody(lexer.TOKEN_END)
		if err != nil {
			return nil, err
		}
		if keywordStyle {
			if _, err := p.expect(lexer.TOKEN_END); err != nil {
				return nil, err
			}
		}
		return &ast.NumericForStmt{Position: pos, Var: firstTok.Literal, Start: start, Stop: stop, Step: step, Body: body}, nil
	}

	// Generic for: for k[, v] in iterExpr { ... }
	// For-range: for i in A .. B { ... } — only legal with a single loop
	// variable; caught below once iterExpr is parsed.
	hasValVar := false
	var valVar string
	if p.cur.Type == lexer.TOKEN_COMMA {
		if err := p.next(); err != nil {
			return nil, err
		}
		valTok, err := p.expect(lexer.TOKEN_IDENT)
		if err != nil {
			return nil, err
		}
		valVar = valTok.Literal
		hasValVar = true
	}
	if _, err := p.expect(lexer.TOKEN_IN); err != nil {
		return nil, err
	}
	iter, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	keywordStyle := p.cur.Type == lexer.TOKEN_DO
	if keywordStyle {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	body, err := p.parseBody(lexer.TOKEN_END)
	if err != nil {
		return nil, err
	}
	if keywordStyle {
		if _, err := p.expect(lexer.TOKEN_END); err != nil {
			return nil, err
		}
	}

	if rangeExpr, ok := iter.(*ast.BinaryExpr); ok && rangeExpr.Op == ".." && !hasValVar {
		return &ast.ForRangeStmt{Position: pos, Var: firstTok.Literal, Start: rangeExpr.Left, Stop: rangeExpr.Right, Body: body}, nil
	}

	genFor := &ast.GenericForStmt{Position: pos, KeyVar: firstTok.Literal, ValVar: valVar, Iter: iter, Body: body}
	return genFor, nil
}

func (p *Parser) parseFunctionDecl() (ast.Statement, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.TOKEN_IDENT)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	keywordStyle := p.cur.Type != lexer.TOKEN_LBRACE
	body, err := p.parseBody(lexer.TOKEN_END)
	if err != nil {
		return nil, err
	}
	if keywordStyle {
		if _, err := p.expect(lexer.TOKEN_END); err != nil {
			return nil, err
		}
	}
	return &ast.FunctionDecl{Position: pos, Name: nameTok.Literal, Params: params, Body: body}, nil
}

func (p *Parser) parseParamList() ([]string, error) {
	if _, err := p.expect(lexer.TOKEN_LPAREN); err != nil {
		return nil, err
	}
	var params []string
	for p.cur.Type != lexer.TOKEN_RPAREN {
		tok, err := p.expect(lexer.TOKEN_IDENT)
		if err != nil {
			return nil, err
		}
		params = append(params, tok.Literal)
		if p.cur.Type == lexer.TOKEN_COMMA {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TOKEN_RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseReturn() (ast.Statement, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	stmt := &ast.ReturnStmt{Position: pos}
	if p.cur.Type != lexer.TOKEN_NEWLINE && p.cur.Type != lexer.TOKEN_SEMI &&
		p.cur.Type != lexer.TOKEN_EOF && p.cur.Type != lexer.TOKEN_END &&
		p.cur.Type != lexer.TOKEN_RBRACE {
		val, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		stmt.Value = val
	}
	return stmt, nil
}

// parseExprOrAssignStatement disambiguates `expr` from `target = expr`.
func (p *Parser) parseExprOrAssignStatement() (ast.Statement, error) {
	pos := p.cur.Position
	expr, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if p.cur.Type == lexer.TOKEN_ASSIGN {
		switch expr.(type) {
		case *ast.Identifier, *ast.IndexExpr, *ast.FieldExpr:
		default:
			return nil, &ParseError{Message: "invalid assignment target", Position: pos}
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		val, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Position: pos, Target: expr, Value: val}, nil
	}
	return &ast.ExprStmt{Position: pos, X: expr}, nil
}

// ---- Expression parsing (precedence climbing) ----

type precedence int

const (
	LOWEST precedence = iota
	OR_PREC
	AND_PREC
	EQUALITY
	COMPARISON
	CONCAT_PREC
	SUM
	PRODUCT
	UNARY
	CALL_PREC
)

var precedences = map[lexer.TokenType]precedence{
	lexer.TOKEN_OR:      OR_PREC,
	lexer.TOKEN_OR_OR:   OR_PREC,
	lexer.TOKEN_AND:     AND_PREC,
	lexer.TOKEN_AND_AND: AND_PREC,
	lexer.TOKEN_EQ:      EQUALITY,
	lexer.TOKEN_NEQ:     EQUALITY,
	lexer.TOKEN_LT:      COMPARISON,
	lexer.TOKEN_LE:      COMPARISON,
	lexer.TOKEN_GT:      COMPARISON,
	lexer.TOKEN_GE:      COMPARISON,
	lexer.TOKEN_CONCAT:  CONCAT_PREC,
	lexer.TOKEN_PLUS:    SUM,
	lexer.TOKEN_MINUS:   SUM,
	lexer.TOKEN_STAR:    PRODUCT,
	lexer.TOKEN_SLASH:   PRODUCT,
	lexer.TOKEN_PERCENT: PRODUCT,
	lexer.TOKEN_LPAREN:  CALL_PREC,
	lexer.TOKEN_LBRACKET: CALL_PREC,
	lexer.TOKEN_DOT:     CALL_PREC,
}

func (p *Parser) peekPrecedence() precedence {
	if pr, ok := precedences[p.cur.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) parseExpression(prec precedence) (ast.Expression, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for prec < p.peekPrecedence() {
		switch p.cur.Type {
		case lexer.TOKEN_LPAREN:
			left, err = p.parseCall(left)
		case lexer.TOKEN_LBRACKET:
			left, err = p.parseIndex(left)
		case lexer.TOKEN_DOT:
			left, err = p.parseField(left)
		default:
			left, err = p.parseInfix(left)
		}
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parsePrefix() (ast.Expression, error) {
	pos := p.cur.Position
	switch p.cur.Type {
	case lexer.TOKEN_NUMBER:
		lit := p.cur.Literal
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, &ParseError{Message: "malformed number literal " + lit, Position: pos}
		}
		return &ast.NumberLiteral{Position: pos, Value: v}, nil
	case lexer.TOKEN_STRING:
		lit := p.cur.Literal
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.StringLiteral{Position: pos, Value: lit}, nil
	case lexer.TOKEN_TRUE:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.BoolLiteral{Position: pos, Value: true}, nil
	case lexer.TOKEN_FALSE:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.BoolLiteral{Position: pos, Value: false}, nil
	case lexer.TOKEN_NIL:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.NilLiteral{Position: pos}, nil
	case lexer.TOKEN_IDENT:
		name := p.cur.Literal
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Identifier{Position: pos, Name: name}, nil
	case lexer.TOKEN_LPAREN:
		if err := p.next(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TOKEN_RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	case lexer.TOKEN_LBRACKET:
		return p.parseArrayLiteral()
	case lexer.TOKEN_LBRACE:
		return p.parseTableLiteral()
	case lexer.TOKEN_FUNCTION:
		return p.parseFunctionLiteral()
	case lexer.TOKEN_MINUS, lexer.TOKEN_NOT, lexer.TOKEN_BANG:
		op := p.cur.Literal
		if p.cur.Type == lexer.TOKEN_NOT {
			op = "not"
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.parseExpression(UNARY)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Position: pos, Op: op, X: x}, nil
	default:
		return nil, &ParseError{Message: fmt.Sprintf("unexpected token %s %q", p.cur.Type, p.cur.Literal), Position: pos}
	}
}

func (p *Parser) parseInfix(left ast.Expression) (ast.Expression, error) {
	pos := p.cur.Position
	opTok := p.cur
	prec := p.peekPrecedence()
	if err := p.next(); err != nil {
		return nil, err
	}
	right, err := p.parseExpression(prec)
	if err != nil {
		return nil, err
	}
	op := opTok.Literal
	if opTok.Type == lexer.TOKEN_AND {
		op = "and"
	} else if opTok.Type == lexer.TOKEN_OR {
		op = "or"
	}
	return &ast.BinaryExpr{Position: pos, Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseCall(callee ast.Expression) (ast.Expression, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	var args []ast.Expression
	for p.cur.Type != lexer.TOKEN_RPAREN {
		arg, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.Type == lexer.TOKEN_COMMA {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TOKEN_RPAREN); err != nil {
		return nil, err
	}
	return &ast.CallExpr{Position: pos, Callee: callee, Args: args}, nil
}

func (p *Parser) parseIndex(x ast.Expression) (ast.Expression, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	idx, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TOKEN_RBRACKET); err != nil {
		return nil, err
	}
	return &ast.IndexExpr{Position: pos, X: x, Index: idx}, nil
}

func (p *Parser) parseField(x ast.Expression) (ast.Expression, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.TOKEN_IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.FieldExpr{Position: pos, X: x, Name: nameTok.Literal}, nil
}

func (p *Parser) parseArrayLiteral() (ast.Expression, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	arr := &ast.ArrayLiteral{Position: pos}
	for p.cur.Type != lexer.TOKEN_RBRACKET {
		el, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, el)
		if p.cur.Type == lexer.TOKEN_COMMA {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TOKEN_RBRACKET); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *Parser) parseTableLiteral() (ast.Expression, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	tbl := &ast.TableLiteral{Position: pos}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	for p.cur.Type != lexer.TOKEN_RBRACE {
		keyTok, err := p.expect(lexer.TOKEN_IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TOKEN_ASSIGN); err != nil {
			return nil, err
		}
		val, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		tbl.Keys = append(tbl.Keys, keyTok.Literal)
		tbl.Values = append(tbl.Values, val)
		if p.cur.Type == lexer.TOKEN_COMMA {
			if err := p.next(); err != nil {
				return nil, err
			}
			if err := p.skipNewlines(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TOKEN_RBRACE); err != nil {
		return nil, err
	}
	return tbl, nil
}

func (p *Parser) parseFunctionLiteral() (ast.Expression, error) {
	pos := p.cur.Position
	if err := p.next(); err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	keywordStyle := p.cur.Type != lexer.TOKEN_LBRACE
	body, err := p.parseBody(lexer.TOKEN_END)
	if err != nil {
		return nil, err
	}
	if keywordStyle {
		if _, err := p.expect(lexer.TOKEN_END); err != nil {
			return nil, err
		}
	}
	return &ast.FunctionLiteral{Position: pos, Params: params, Body: body}, nil
}
