package parser

import (
	"github.com/thiremani/cstage/ast"
	"github.com/thiremani/cstage/token"
)

func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	program.Functions = []*ast.Function{}

	for !p.curTokenIs(token.EOF) {
		if !p.curToken.IsTypeName() {
			p.errorf(p.curToken, "expected function declaration, got %q", p.curToken.Literal)
			p.skipToTopLevel()
			continue
		}
		fn := p.parseFunction()
		if fn != nil {
			program.Functions = append(program.Functions, fn)
		}
		p.nextToken()
	}

	return program
}

// skipToTopLevel advances past tokens until the next plausible function start.
func (p *Parser) skipToTopLevel() {
	p.nextToken()
	for !p.curTokenIs(token.EOF) && !p.curToken.IsTypeName() {
		p.nextToken()
	}
}

// synchronize leaves curToken on the last token of the broken statement so the
// enclosing block can resume with the next one.
func (p *Parser) synchronize() {
	for !p.curTokenIs(token.SEMICOLON) && !p.peekTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		p.nextToken()
	}
}

func (p *Parser) parseFunction() *ast.Function {
	fn := &ast.Function{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		p.skipToTopLevel()
		return nil
	}
	fn.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.parseParams()
	if !ok {
		return nil
	}
	fn.Params = params

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	fn.Body = p.parseBlockStatement()
	if fn.Body == nil {
		return nil
	}

	return fn
}

func (p *Parser) parseParams() ([]*ast.Param, bool) {
	params := []*ast.Param{}

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params, true
	}
	// f(void) declares no parameters
	if p.peekTokenIs(token.VOID) {
		p.nextToken()
		if p.peekTokenIs(token.RPAREN) {
			p.nextToken()
			return params, true
		}
		p.errorf(p.curToken, "parameter cannot have type void")
		return nil, false
	}

	for {
		p.nextToken()
		if !p.curToken.IsTypeName() || p.curTokenIs(token.VOID) {
			p.errorf(p.curToken, "expected parameter type, got %q", p.curToken.Literal)
			return nil, false
		}
		param := &ast.Param{Type: p.curToken}
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		param.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
		params = append(params, param)

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(token.RPAREN) {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	block.Statements = []ast.Statement{}

	p.nextToken()

	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.errorf(block.Token, "unbalanced braces: block opened here is never closed")
			return nil
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	return block
}

// parseStatement parses the statement starting at curToken and leaves curToken on
// its last token.
func (p *Parser) parseStatement() ast.Statement {
	var stmt ast.Statement
	switch {
	case p.curTokenIs(token.SEMICOLON):
		// empty statement
		return &ast.BlockStatement{Token: p.curToken, Statements: []ast.Statement{}}
	case p.curTokenIs(token.LBRACE):
		block := p.parseBlockStatement()
		if block == nil {
			return nil
		}
		return block
	case p.curTokenIs(token.RETURN):
		stmt = p.parseReturnStatement()
	case p.curTokenIs(token.IF):
		stmt = p.parseIfStatement()
	case p.curTokenIs(token.WHILE):
		stmt = p.parseWhileStatement()
	case p.curTokenIs(token.FOR):
		stmt = p.parseForStatement()
	case p.curTokenIs(token.RBRACE):
		p.errorf(p.curToken, "unbalanced braces: unexpected \"}\"")
		return nil
	default:
		stmt = p.parseSimpleStatement()
		if stmt != nil && !p.expectPeek(token.SEMICOLON) {
			stmt = nil
		}
	}

	if stmt == nil {
		p.synchronize()
	}
	return stmt
}

// parseSimpleStatement parses a declaration, an assignment or an expression
// statement without its terminating semicolon.
func (p *Parser) parseSimpleStatement() ast.Statement {
	switch {
	case p.curToken.IsTypeName():
		return p.parseDeclStatement()
	case p.curTokenIs(token.IDENT) && p.peekToken.IsAssign():
		return p.parseAssignStatement()
	}

	first := p.curToken
	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}
	return &ast.ExpressionStatement{Token: first, Expression: exp}
}

func (p *Parser) parseDeclStatement() ast.Statement {
	stmt := &ast.DeclStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.peekTokenIs(token.ASSIGN) {
		return stmt
	}
	p.nextToken()
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseAssignStatement() ast.Statement {
	name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	p.nextToken()
	stmt := &ast.AssignStatement{Token: p.curToken, Name: name}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		return stmt
	}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil || !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

// parseCondition parses "( expr )" following curToken.
func (p *Parser) parseCondition() ast.Expression {
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if cond == nil || !p.expectPeek(token.RPAREN) {
		return nil
	}
	return cond
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}

	stmt.Condition = p.parseCondition()
	if stmt.Condition == nil {
		return nil
	}

	p.nextToken()
	stmt.Consequence = p.parseStatement()
	if stmt.Consequence == nil {
		return nil
	}

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		stmt.Alternative = p.parseStatement()
		if stmt.Alternative == nil {
			return nil
		}
	}

	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	stmt.Condition = p.parseCondition()
	if stmt.Condition == nil {
		return nil
	}

	p.nextToken()
	stmt.Body = p.parseStatement()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	// init
	p.nextToken()
	if !p.curTokenIs(token.SEMICOLON) {
		stmt.Init = p.parseSimpleStatement()
		if stmt.Init == nil || !p.expectPeek(token.SEMICOLON) {
			return nil
		}
	}

	// condition
	p.nextToken()
	if !p.curTokenIs(token.SEMICOLON) {
		stmt.Condition = p.parseExpression(LOWEST)
		if stmt.Condition == nil || !p.expectPeek(token.SEMICOLON) {
			return nil
		}
	}

	// post
	p.nextToken()
	if !p.curTokenIs(token.RPAREN) {
		stmt.Post = p.parseSimpleStatement()
		if stmt.Post == nil || !p.expectPeek(token.RPAREN) {
			return nil
		}
	}

	p.nextToken()
	stmt.Body = p.parseStatement()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}
