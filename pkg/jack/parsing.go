package jack

import (
	"fmt"
	"io"
	"strconv"

	"n2t.dev/toolchain/pkg/utils"
)

// binaryOps maps a Jack-level binary operator symbol to its ExprType counterpart.
var binaryOps = map[string]ExprType{
	"+": Plus, "-": Minus, "*": Multiply, "/": Divide,
	"&": BoolAnd, "|": BoolOr, "<": LessThan, ">": GreatThan, "=": Equal,
}

// unaryOps maps a Jack-level unary (prefix) operator symbol to its ExprType counterpart.
// '^' and '#' are the native shift extension, unary-only by grammar.
var unaryOps = map[string]ExprType{
	"-": Negation, "~": BoolNot, "^": ShiftLeft, "#": ShiftRight,
}

var primitiveTypes = map[string]DataTypeKind{
	"int": Int, "char": Char, "boolean": Bool, "void": Void,
}

// ----------------------------------------------------------------------------
// Jack Parser

// Parser builds a Class AST out of the token stream produced by a Tokenizer, using plain
// recursive descent with a single token of lookahead — the grammar never needs more, since
// the only ambiguous production (a bare identifier as a term) is resolved by peeking at
// whichever symbol follows it ('[', '(' or '.').
type Parser struct {
	tokens []Token
	pos    int

	className string // Name of the class currently being parsed
}

// Initializes and returns to the caller a brand new 'Parser' struct.
// Requires the argument io.Reader 'r' to be valid and usable.
func NewParser(r io.Reader) Parser {
	content, _ := io.ReadAll(r)
	return Parser{tokens: nil, pos: 0}.withSource(string(content))
}

func (p Parser) withSource(source string) Parser {
	tokens, err := NewTokenizer(source).Tokenize()
	if err != nil {
		// Deferred: surfaced properly once Parse() is called, tokens stays nil so Parse fails loudly.
		return Parser{tokens: nil, pos: 0}
	}
	return Parser{tokens: tokens, pos: 0}
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.cur()
	p.pos++
	return tok
}

func (p *Parser) expect(value string) (Token, error) {
	if p.cur().Value != value {
		return Token{}, fmt.Errorf("expected %q, got %q at token %d", value, p.cur().Value, p.pos)
	}
	return p.advance(), nil
}

func (p *Parser) expectType(t TokenType) (Token, error) {
	if p.cur().Type != t {
		return Token{}, fmt.Errorf("expected a token of type %s, got %q (%s)", t, p.cur().Value, p.cur().Type)
	}
	return p.advance(), nil
}

// Parse is the parser's entrypoint: Text --> tokens --> Class AST.
func (p *Parser) Parse() (Class, error) {
	if len(p.tokens) == 0 {
		return Class{}, fmt.Errorf("no tokens to parse, the input may be empty or unreadable")
	}
	return p.parseClass()
}

func (p *Parser) parseClass() (Class, error) {
	if _, err := p.expect("class"); err != nil {
		return Class{}, err
	}
	name, err := p.expectType(TokenIdent)
	if err != nil {
		return Class{}, fmt.Errorf("expected class name: %w", err)
	}
	p.className = name.Value

	if _, err := p.expect("{"); err != nil {
		return Class{}, err
	}

	var fields []utils.MapEntry[string, Variable]
	for p.cur().Value == "static" || p.cur().Value == "field" {
		vars, err := p.parseClassVarDec()
		if err != nil {
			return Class{}, fmt.Errorf("error parsing class var declaration: %w", err)
		}
		fields = append(fields, vars...)
	}

	var subroutines []utils.MapEntry[string, Subroutine]
	for p.cur().Value == "constructor" || p.cur().Value == "function" || p.cur().Value == "method" {
		sub, err := p.parseSubroutineDec()
		if err != nil {
			return Class{}, fmt.Errorf("error parsing subroutine declaration: %w", err)
		}
		subroutines = append(subroutines, utils.MapEntry[string, Subroutine]{Key: sub.Name, Value: sub})
	}

	if _, err := p.expect("}"); err != nil {
		return Class{}, err
	}

	return Class{
		Name:        name.Value,
		Fields:      utils.NewOrderedMapFromList(fields),
		Subroutines: utils.NewOrderedMapFromList(subroutines),
	}, nil
}

func (p *Parser) parseClassVarDec() ([]utils.MapEntry[string, Variable], error) {
	kind := p.advance().Value // 'static' | 'field'
	varType, err := p.parseVarType()
	if err != nil {
		return nil, err
	}

	var vt VarType
	if kind == "static" {
		vt = Static
	} else {
		vt = Field
	}

	var entries []utils.MapEntry[string, Variable]
	for {
		name, err := p.expectType(TokenIdent)
		if err != nil {
			return nil, fmt.Errorf("expected variable name: %w", err)
		}
		variable := Variable{Name: name.Value, VarType: vt, DataType: varType}
		entries = append(entries, utils.MapEntry[string, Variable]{Key: name.Value, Value: variable})

		if p.cur().Value != "," {
			break
		}
		p.advance() // ','
	}

	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseVarType parses either a primitive type keyword or a className used as an object type.
func (p *Parser) parseVarType() (DataType, error) {
	tok := p.advance()
	if kind, isPrimitive := primitiveTypes[tok.Value]; isPrimitive {
		return DataType{Main: kind}, nil
	}
	if tok.Type != TokenIdent {
		return DataType{}, fmt.Errorf("expected a type, got %q", tok.Value)
	}
	return DataType{Main: Object, Subtype: tok.Value}, nil
}

func (p *Parser) parseSubroutineDec() (Subroutine, error) {
	kindTok := p.advance() // 'constructor' | 'function' | 'method'
	var subType SubroutineType
	switch kindTok.Value {
	case "constructor":
		subType = Constructor
	case "function":
		subType = Function
	case "method":
		subType = Method
	}

	returnType, err := p.parseVarType()
	if err != nil {
		return Subroutine{}, fmt.Errorf("expected return type: %w", err)
	}

	name, err := p.expectType(TokenIdent)
	if err != nil {
		return Subroutine{}, fmt.Errorf("expected subroutine name: %w", err)
	}

	if _, err := p.expect("("); err != nil {
		return Subroutine{}, err
	}
	args, err := p.parseParameterList()
	if err != nil {
		return Subroutine{}, fmt.Errorf("error parsing parameter list: %w", err)
	}
	if _, err := p.expect(")"); err != nil {
		return Subroutine{}, err
	}

	if _, err := p.expect("{"); err != nil {
		return Subroutine{}, err
	}

	var varDecls []Variable
	for p.cur().Value == "var" {
		vars, err := p.parseVarDec()
		if err != nil {
			return Subroutine{}, fmt.Errorf("error parsing var declaration: %w", err)
		}
		varDecls = append(varDecls, vars...)
	}

	statements, err := p.parseStatements()
	if err != nil {
		return Subroutine{}, fmt.Errorf("error parsing statements: %w", err)
	}

	if _, err := p.expect("}"); err != nil {
		return Subroutine{}, err
	}

	// Local var declarations are prepended as VarStmt so the lowerer registers them in scope
	// before the rest of the body runs, the same way 'compile_var_dec' feeds the symbol table
	// ahead of 'compile_statements' in the reference implementation.
	if len(varDecls) > 0 {
		statements = append([]Statement{VarStmt{Vars: varDecls}}, statements...)
	}

	return Subroutine{
		Name:       name.Value,
		Type:       subType,
		Return:     returnType,
		Arguments:  args,
		Statements: statements,
	}, nil
}

func (p *Parser) parseParameterList() ([]Variable, error) {
	var args []Variable
	if p.cur().Value == ")" {
		return args, nil
	}

	for {
		varType, err := p.parseVarType()
		if err != nil {
			return nil, err
		}
		name, err := p.expectType(TokenIdent)
		if err != nil {
			return nil, fmt.Errorf("expected parameter name: %w", err)
		}
		args = append(args, Variable{Name: name.Value, VarType: Parameter, DataType: varType})

		if p.cur().Value != "," {
			break
		}
		p.advance() // ','
	}
	return args, nil
}

func (p *Parser) parseVarDec() ([]Variable, error) {
	p.advance() // 'var'
	varType, err := p.parseVarType()
	if err != nil {
		return nil, err
	}

	var vars []Variable
	for {
		name, err := p.expectType(TokenIdent)
		if err != nil {
			return nil, fmt.Errorf("expected variable name: %w", err)
		}
		vars = append(vars, Variable{Name: name.Value, VarType: Local, DataType: varType})

		if p.cur().Value != "," {
			break
		}
		p.advance() // ','
	}

	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return vars, nil
}

// ----------------------------------------------------------------------------
// Statements

func (p *Parser) parseStatements() ([]Statement, error) {
	var statements []Statement
	for {
		switch p.cur().Value {
		case "let":
			stmt, err := p.parseLetStatement()
			if err != nil {
				return nil, err
			}
			statements = append(statements, stmt)
		case "if":
			stmt, err := p.parseIfStatement()
			if err != nil {
				return nil, err
			}
			statements = append(statements, stmt)
		case "while":
			stmt, err := p.parseWhileStatement()
			if err != nil {
				return nil, err
			}
			statements = append(statements, stmt)
		case "do":
			stmt, err := p.parseDoStatement()
			if err != nil {
				return nil, err
			}
			statements = append(statements, stmt)
		case "return":
			stmt, err := p.parseReturnStatement()
			if err != nil {
				return nil, err
			}
			statements = append(statements, stmt)
		default:
			return statements, nil
		}
	}
}

func (p *Parser) parseLetStatement() (Statement, error) {
	p.advance() // 'let'
	name, err := p.expectType(TokenIdent)
	if err != nil {
		return nil, fmt.Errorf("expected variable name: %w", err)
	}

	var lhs Expression = VarExpr{Var: name.Value}
	if p.cur().Value == "[" {
		p.advance() // '['
		index, err := p.parseExpression()
		if err != nil {
			return nil, fmt.Errorf("error parsing array index expression: %w", err)
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		lhs = ArrayExpr{Var: name.Value, Index: index}
	}

	if _, err := p.expect("="); err != nil {
		return nil, err
	}
	rhs, err := p.parseExpression()
	if err != nil {
		return nil, fmt.Errorf("error parsing assignment expression: %w", err)
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}

	return LetStmt{Lhs: lhs, Rhs: rhs}, nil
}

func (p *Parser) parseIfStatement() (Statement, error) {
	p.advance() // 'if'
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, fmt.Errorf("error parsing if condition: %w", err)
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	thenBlock, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}

	var elseBlock []Statement
	if p.cur().Value == "else" {
		p.advance() // 'else'
		if _, err := p.expect("{"); err != nil {
			return nil, err
		}
		elseBlock, err = p.parseStatements()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("}"); err != nil {
			return nil, err
		}
	}

	return IfStmt{Condition: cond, ThenBlock: thenBlock, ElseBlock: elseBlock}, nil
}

func (p *Parser) parseWhileStatement() (Statement, error) {
	p.advance() // 'while'
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, fmt.Errorf("error parsing while condition: %w", err)
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	block, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}

	return WhileStmt{Condition: cond, Block: block}, nil
}

func (p *Parser) parseDoStatement() (Statement, error) {
	p.advance() // 'do'
	call, err := p.parseSubroutineCall()
	if err != nil {
		return nil, fmt.Errorf("error parsing subroutine call: %w", err)
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return DoStmt{FuncCall: call}, nil
}

func (p *Parser) parseReturnStatement() (Statement, error) {
	p.advance() // 'return'
	if p.cur().Value == ";" {
		p.advance()
		return ReturnStmt{Expr: nil}, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, fmt.Errorf("error parsing return expression: %w", err)
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return ReturnStmt{Expr: expr}, nil
}

// ----------------------------------------------------------------------------
// Expressions

func (p *Parser) parseExpression() (Expression, error) {
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		op, isOp := binaryOps[p.cur().Value]
		if !isOp || p.cur().Type != TokenSymbol {
			return lhs, nil
		}
		p.advance() // operator
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, fmt.Errorf("error parsing RHS term: %w", err)
		}
		lhs = BinaryExpr{Type: op, Lhs: lhs, Rhs: rhs}
	}
}

func (p *Parser) parseTerm() (Expression, error) {
	tok := p.cur()

	switch {
	case tok.Type == TokenInt:
		p.advance()
		value, err := strconv.ParseUint(tok.Value, 10, 32)
		if err != nil || value > MaxIntLiteral {
			return nil, fmt.Errorf("integer literal out of range: %s", tok.Value)
		}
		return LiteralExpr{Type: DataType{Main: Int}, Value: tok.Value}, nil

	case tok.Type == TokenString:
		p.advance()
		return LiteralExpr{Type: DataType{Main: String}, Value: tok.Value}, nil

	case tok.Value == "(":
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case tok.Type == TokenSymbol && unaryOps[tok.Value] != "":
		op := unaryOps[tok.Value]
		p.advance()
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, fmt.Errorf("error parsing unary operand: %w", err)
		}
		return UnaryExpr{Type: op, Rhs: rhs}, nil

	case tok.Value == "true":
		p.advance()
		return LiteralExpr{Type: DataType{Main: Bool}, Value: "true"}, nil
	case tok.Value == "false":
		p.advance()
		return LiteralExpr{Type: DataType{Main: Bool}, Value: "false"}, nil
	case tok.Value == "null":
		p.advance()
		return LiteralExpr{Type: DataType{Main: Object}, Value: "null"}, nil
	case tok.Value == "this":
		p.advance()
		return VarExpr{Var: "this"}, nil

	case tok.Type == TokenIdent:
		// A single token of lookahead disambiguates a bare identifier: '[' means an array
		// access, '(' or '.' mean a subroutine call, anything else is a plain variable read.
		next := p.peekAt(1)
		if next.Value == "(" || next.Value == "." {
			return p.parseSubroutineCall()
		}
		if next.Value == "[" {
			name := p.advance().Value
			p.advance() // '['
			index, err := p.parseExpression()
			if err != nil {
				return nil, fmt.Errorf("error parsing array index: %w", err)
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			return ArrayExpr{Var: name, Index: index}, nil
		}
		name := p.advance().Value
		return VarExpr{Var: name}, nil

	default:
		return nil, fmt.Errorf("unexpected token %q while parsing a term", tok.Value)
	}
}

func (p *Parser) parseSubroutineCall() (FuncCallExpr, error) {
	first, err := p.expectType(TokenIdent)
	if err != nil {
		return FuncCallExpr{}, fmt.Errorf("expected subroutine or variable name: %w", err)
	}

	call := FuncCallExpr{FuncName: first.Value}
	if p.cur().Value == "." {
		p.advance() // '.'
		method, err := p.expectType(TokenIdent)
		if err != nil {
			return FuncCallExpr{}, fmt.Errorf("expected method name after '.': %w", err)
		}
		call = FuncCallExpr{IsExtCall: true, Var: first.Value, FuncName: method.Value}
	}

	if _, err := p.expect("("); err != nil {
		return FuncCallExpr{}, err
	}
	args, err := p.parseExpressionList()
	if err != nil {
		return FuncCallExpr{}, fmt.Errorf("error parsing argument list: %w", err)
	}
	if _, err := p.expect(")"); err != nil {
		return FuncCallExpr{}, err
	}
	call.Arguments = args
	return call, nil
}

func (p *Parser) parseExpressionList() ([]Expression, error) {
	var exprs []Expression
	if p.cur().Value == ")" {
		return exprs, nil
	}

	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)

		if p.cur().Value != "," {
			break
		}
		p.advance() // ','
	}
	return exprs, nil
}
