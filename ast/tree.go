package ast

import (
	"fmt"
	"strings"
)

// Tree renders node as an indented outline, one "• Kind: value" line per node.
func Tree(node Node) string {
	var sb strings.Builder
	writeTree(&sb, node, 0)
	return sb.String()
}

func writeTree(sb *strings.Builder, node Node, depth int) {
	line := func(kind, value string) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString("• ")
		sb.WriteString(kind)
		if value != "" {
			sb.WriteString(": ")
			sb.WriteString(value)
		}
		sb.WriteString("\n")
	}
	child := func(n Node) {
		if n != nil {
			writeTree(sb, n, depth+1)
		}
	}

	switch n := node.(type) {
	case *Program:
		line("ROOT", "")
		for _, f := range n.Functions {
			child(f)
		}
	case *Function:
		line("Function", n.Name.Value)
		depth++
		line("ReturnType", n.Token.Literal)
		for _, p := range n.Params {
			line("Param", p.String())
		}
		depth--
		child(n.Body)
	case *BlockStatement:
		line("Block", "")
		for _, s := range n.Statements {
			child(s)
		}
	case *DeclStatement:
		line("VarDecl", n.Name.Value)
		depth++
		line("Type", n.Token.Literal)
		depth--
		if n.Value != nil {
			child(n.Value)
		}
	case *AssignStatement:
		line("Assignment", n.Name.Value+" "+n.Token.Literal)
		child(n.Value)
	case *ReturnStatement:
		line("Return", "")
		if n.Value != nil {
			child(n.Value)
		}
	case *ExpressionStatement:
		line("ExprStmt", "")
		child(n.Expression)
	case *IfStatement:
		line("If", "")
		child(n.Condition)
		child(n.Consequence)
		if n.Alternative != nil {
			depth++
			line("Else", "")
			child(n.Alternative)
			depth--
		}
	case *WhileStatement:
		line("While", "")
		child(n.Condition)
		child(n.Body)
	case *ForStatement:
		line("For", "")
		if n.Init != nil {
			child(n.Init)
		}
		if n.Condition != nil {
			child(n.Condition)
		}
		if n.Post != nil {
			child(n.Post)
		}
		child(n.Body)
	case *Identifier:
		line("Identifier", n.Value)
	case *IntegerLiteral:
		line("Literal", n.Token.Literal)
	case *FloatLiteral:
		line("Literal", n.Token.Literal)
	case *CharLiteral:
		line("Literal", n.Token.Literal)
	case *PrefixExpression:
		line("UnaryOp", n.Operator)
		child(n.Right)
	case *InfixExpression:
		line("BinaryOp", n.Operator)
		child(n.Left)
		child(n.Right)
	case *CallExpression:
		line("Call", n.Function.Value)
		for _, a := range n.Arguments {
			child(a)
		}
	default:
		line(fmt.Sprintf("%T", node), node.String())
	}
}
