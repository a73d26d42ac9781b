package jack

import (
	"fmt"
)

// ----------------------------------------------------------------------------
// Jack Type Checker

// The TypeChecker walks a 'jack.Program' the same way the Lowerer does (DFS, class by class,
// statement by statement) but instead of producing 'vm.Operation's it only validates that every
// variable reference resolves to a declared 'Variable' and that every subroutine call targets an
// existing subroutine with a matching argument count. It does not perform full type inference
// (e.g. it will not catch 'let x = "abc"' assigning a string to an int field) since Jack programs
// rarely rely on that for correctness, but it catches the mistakes that would otherwise surface
// as a cryptic lowering error deep into codegen.
type TypeChecker struct {
	program Program
	scopes  ScopeTable // Keeps track of the scopes and declared variables inside each one
}

func NewTypeChecker(program Program) TypeChecker {
	return TypeChecker{program: program, scopes: ScopeTable{}}
}

func (tc *TypeChecker) Check() (bool, error) {
	if len(tc.program) == 0 {
		return false, fmt.Errorf("the given 'program' is empty or nil")
	}

	for name, class := range tc.program {
		if _, err := tc.HandleClass(class); err != nil {
			return false, fmt.Errorf("error handling class '%s': %w", name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Class' and nested fields.
func (tc *TypeChecker) HandleClass(class Class) (bool, error) {
	tc.scopes.PushClassScope(class.Name) // Keep track of the current scope being processed
	defer tc.scopes.PopClassScope()      // Reset the function name after processing

	for name, field := range class.Fields.Entries() {
		tc.scopes.RegisterVariable(field)
		if field.Name != name {
			return false, fmt.Errorf("field '%s' registered under mismatching key '%s'", field.Name, name)
		}
	}

	for name, subroutine := range class.Subroutines.Entries() {
		if _, err := tc.HandleSubroutine(class, subroutine); err != nil {
			return false, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", name, class.Name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Subroutine' and nested fields.
func (tc *TypeChecker) HandleSubroutine(class Class, subroutine Subroutine) (bool, error) {
	tc.scopes.PushSubRoutineScope(subroutine.Name) // Keep track of the current subroutine function being processed
	defer tc.scopes.PopSubroutineScope()           // Reset the function name after processing

	if subroutine.Type == Method {
		tc.scopes.RegisterVariable(Variable{Name: "this", VarType: Parameter, DataType: DataType{Main: Object, Subtype: class.Name}})
	}

	for _, arg := range subroutine.Arguments {
		tc.scopes.RegisterVariable(arg)
	}

	for _, stmt := range subroutine.Statements {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling nested statement %T: %w", stmt, err)
		}
	}

	return true, nil
}

// Generalized function to type-check multiple statements types.
func (tc *TypeChecker) HandleStatement(stmt Statement) (bool, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		_, err := tc.HandleExpression(tStmt.FuncCall)
		return err == nil, err
	case VarStmt:
		for _, variable := range tStmt.Vars {
			tc.scopes.RegisterVariable(variable)
		}
		return true, nil
	case LetStmt:
		return tc.HandleLetStmt(tStmt)
	case IfStmt:
		return tc.HandleIfStmt(tStmt)
	case WhileStmt:
		return tc.HandleWhileStmt(tStmt)
	case ReturnStmt:
		if tStmt.Expr == nil {
			return true, nil
		}
		_, err := tc.HandleExpression(tStmt.Expr)
		return err == nil, err
	default:
		return false, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

// Specialized function to type-check a 'jack.LetStmt'.
func (tc *TypeChecker) HandleLetStmt(statement LetStmt) (bool, error) {
	if _, err := tc.HandleExpression(statement.Rhs); err != nil {
		return false, fmt.Errorf("error handling RHS expression: %w", err)
	}

	switch lhs := statement.Lhs.(type) {
	case VarExpr:
		if _, _, err := tc.scopes.ResolveVariable(lhs.Var); err != nil {
			return false, fmt.Errorf("error resolving LHS variable '%s': %w", lhs.Var, err)
		}
		return true, nil
	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(lhs.Var); err != nil {
			return false, fmt.Errorf("error resolving LHS array variable '%s': %w", lhs.Var, err)
		}
		if _, err := tc.HandleExpression(lhs.Index); err != nil {
			return false, fmt.Errorf("error handling array index expression: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("LHS expression must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
	}
}

// Specialized function to type-check a 'jack.IfStmt' and its nested blocks.
func (tc *TypeChecker) HandleIfStmt(statement IfStmt) (bool, error) {
	if _, err := tc.HandleExpression(statement.Condition); err != nil {
		return false, fmt.Errorf("error handling if condition expression: %w", err)
	}

	for _, stmt := range statement.ThenBlock {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in 'then' block: %w", err)
		}
	}

	for _, stmt := range statement.ElseBlock {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in 'else' block: %w", err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.WhileStmt' and its nested block.
func (tc *TypeChecker) HandleWhileStmt(statement WhileStmt) (bool, error) {
	if _, err := tc.HandleExpression(statement.Condition); err != nil {
		return false, fmt.Errorf("error handling while condition expression: %w", err)
	}

	for _, stmt := range statement.Block {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in while block: %w", err)
		}
	}

	return true, nil
}

// Generalized function to type-check multiple expression types.
func (tc *TypeChecker) HandleExpression(expr Expression) (bool, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		if tExpr.Var == "this" {
			return true, nil
		}
		_, _, err := tc.scopes.ResolveVariable(tExpr.Var)
		return err == nil, err
	case LiteralExpr:
		return true, nil
	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			return false, fmt.Errorf("error resolving array variable '%s': %w", tExpr.Var, err)
		}
		_, err := tc.HandleExpression(tExpr.Index)
		return err == nil, err
	case UnaryExpr:
		_, err := tc.HandleExpression(tExpr.Rhs)
		return err == nil, err
	case BinaryExpr:
		if _, err := tc.HandleExpression(tExpr.Lhs); err != nil {
			return false, fmt.Errorf("error handling LHS expression: %w", err)
		}
		_, err := tc.HandleExpression(tExpr.Rhs)
		return err == nil, err
	case FuncCallExpr:
		return tc.HandleFuncCallExpr(tExpr)
	default:
		return false, fmt.Errorf("unrecognized expression: %T", expr)
	}
}

// Specialized function to type-check a 'jack.FuncCallExpr', resolving the callee subroutine
// (either in the current class or an external one) and validating its argument count.
func (tc *TypeChecker) HandleFuncCallExpr(expression FuncCallExpr) (bool, error) {
	for _, arg := range expression.Arguments {
		if _, err := tc.HandleExpression(arg); err != nil {
			return false, fmt.Errorf("error handling argument expression: %w", err)
		}
	}

	resolveRoutine := func(className, subroutineName string) (Subroutine, error) {
		class, exists := tc.program[className]
		if !exists {
			return Subroutine{}, fmt.Errorf("class definition not found for '%s'", className)
		}
		routine, exists := class.Subroutines.Get(subroutineName)
		if !exists {
			return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", subroutineName, className)
		}
		return routine, nil
	}

	if !expression.IsExtCall {
		className := tc.scopes.GetScope()
		if idx := indexOfDot(className); idx >= 0 {
			className = className[:idx]
		}

		routine, err := resolveRoutine(className, expression.FuncName)
		if err != nil {
			return false, err
		}
		return tc.checkArgumentCount(routine, expression)
	}

	if _, variable, err := tc.scopes.ResolveVariable(expression.Var); err == nil {
		if variable.DataType.Main != Object {
			return false, fmt.Errorf("variable '%s' is not an object, cannot call method '%s' on it", expression.Var, expression.FuncName)
		}

		routine, err := resolveRoutine(variable.DataType.Subtype, expression.FuncName)
		if err != nil {
			return false, err
		}
		return tc.checkArgumentCount(routine, expression)
	}

	if class, isClass := tc.program[expression.Var]; isClass {
		routine, exists := class.Subroutines.Get(expression.FuncName)
		if !exists {
			return false, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, class.Name)
		}
		if routine.Type == Method {
			return false, fmt.Errorf("subroutine '%s' in class '%s' is a method, cannot call it as a function", expression.FuncName, class.Name)
		}
		return tc.checkArgumentCount(routine, expression)
	}

	return false, fmt.Errorf("unrecognized function call expression target: %s", expression.Var)
}

func (tc *TypeChecker) checkArgumentCount(routine Subroutine, call FuncCallExpr) (bool, error) {
	want := len(routine.Arguments)
	if got := len(call.Arguments); got != want {
		return false, fmt.Errorf("subroutine '%s' expects %d argument(s), got %d", call.FuncName, want, got)
	}
	return true, nil
}

func indexOfDot(s string) int {
	for i, c := range s {
		if c == '.' {
			return i
		}
	}
	return -1
}
