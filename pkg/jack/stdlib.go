package jack

import "n2t.dev/toolchain/pkg/utils"

// ----------------------------------------------------------------------------
// Jack Standard Library ABI

// StandardLibraryABI describes the signature (name, subroutine type and argument count, but no
// body) of every class in the Jack OS: Math, String, Array, Output, Screen, Keyboard, Memory and
// Sys. It is not a working implementation, only the contract a .jack source file may call into.
//
// It exists so the compiler (via the '--stdlib' flag) and the TypeChecker can resolve calls like
// 'Math.multiply', 'String.new' or 'Output.printString' without the caller needing the actual OS
// sources on the classpath: the VM translator and hardware emulator already ship the real
// Math.vm/String.vm/... bodies, so the compiler only needs to know they exist and their shape.
var StandardLibraryABI = buildStandardLibraryABI()

func buildStandardLibraryABI() map[string]Class {
	classes := map[string]Class{}
	for _, def := range stdlibDefs {
		entries := make([]utils.MapEntry[string, Subroutine], 0, len(def.subroutines))
		for _, sub := range def.subroutines {
			entries = append(entries, utils.MapEntry[string, Subroutine]{Key: sub.Name, Value: sub})
		}
		classes[def.name] = Class{
			Name:        def.name,
			Fields:      utils.OrderedMap[string, Variable]{},
			Subroutines: utils.NewOrderedMapFromList(entries),
		}
	}
	return classes
}

type stdlibClassDef struct {
	name        string
	subroutines []Subroutine
}

func primitiveArg(name string, kind DataTypeKind) Variable {
	return Variable{Name: name, VarType: Parameter, DataType: DataType{Main: kind}}
}

func objectArg(name, class string) Variable {
	return Variable{Name: name, VarType: Parameter, DataType: DataType{Main: Object, Subtype: class}}
}

var stdlibDefs = []stdlibClassDef{
	{
		name: "Math",
		subroutines: []Subroutine{
			{Name: "multiply", Type: Function, Return: DataType{Main: Int}, Arguments: []Variable{primitiveArg("x", Int), primitiveArg("y", Int)}},
			{Name: "divide", Type: Function, Return: DataType{Main: Int}, Arguments: []Variable{primitiveArg("x", Int), primitiveArg("y", Int)}},
			{Name: "min", Type: Function, Return: DataType{Main: Int}, Arguments: []Variable{primitiveArg("x", Int), primitiveArg("y", Int)}},
			{Name: "max", Type: Function, Return: DataType{Main: Int}, Arguments: []Variable{primitiveArg("x", Int), primitiveArg("y", Int)}},
			{Name: "abs", Type: Function, Return: DataType{Main: Int}, Arguments: []Variable{primitiveArg("x", Int)}},
			{Name: "sqrt", Type: Function, Return: DataType{Main: Int}, Arguments: []Variable{primitiveArg("x", Int)}},
		},
	},
	{
		name: "String",
		subroutines: []Subroutine{
			{Name: "new", Type: Constructor, Return: DataType{Main: Object, Subtype: "String"}, Arguments: []Variable{primitiveArg("maxLength", Int)}},
			{Name: "dispose", Type: Method, Return: DataType{Main: Void}},
			{Name: "length", Type: Method, Return: DataType{Main: Int}},
			{Name: "charAt", Type: Method, Return: DataType{Main: Char}, Arguments: []Variable{primitiveArg("j", Int)}},
			{Name: "setCharAt", Type: Method, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("j", Int), primitiveArg("c", Char)}},
			{Name: "appendChar", Type: Method, Return: DataType{Main: Object, Subtype: "String"}, Arguments: []Variable{primitiveArg("c", Char)}},
			{Name: "eraseLastChar", Type: Method, Return: DataType{Main: Void}},
			{Name: "intValue", Type: Method, Return: DataType{Main: Int}},
			{Name: "setInt", Type: Method, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("val", Int)}},
			{Name: "newLine", Type: Function, Return: DataType{Main: Char}},
			{Name: "backSpace", Type: Function, Return: DataType{Main: Char}},
			{Name: "doubleQuote", Type: Function, Return: DataType{Main: Char}},
		},
	},
	{
		name: "Array",
		subroutines: []Subroutine{
			{Name: "new", Type: Function, Return: DataType{Main: Object, Subtype: "Array"}, Arguments: []Variable{primitiveArg("size", Int)}},
			{Name: "dispose", Type: Method, Return: DataType{Main: Void}},
		},
	},
	{
		name: "Output",
		subroutines: []Subroutine{
			{Name: "moveCursor", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("i", Int), primitiveArg("j", Int)}},
			{Name: "printChar", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("c", Char)}},
			{Name: "printString", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{objectArg("s", "String")}},
			{Name: "printInt", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("i", Int)}},
			{Name: "println", Type: Function, Return: DataType{Main: Void}},
			{Name: "backSpace", Type: Function, Return: DataType{Main: Void}},
		},
	},
	{
		name: "Screen",
		subroutines: []Subroutine{
			{Name: "clearScreen", Type: Function, Return: DataType{Main: Void}},
			{Name: "setColor", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("b", Bool)}},
			{Name: "drawPixel", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("x", Int), primitiveArg("y", Int)}},
			{Name: "drawLine", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("x1", Int), primitiveArg("y1", Int), primitiveArg("x2", Int), primitiveArg("y2", Int)}},
			{Name: "drawRectangle", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("x1", Int), primitiveArg("y1", Int), primitiveArg("x2", Int), primitiveArg("y2", Int)}},
			{Name: "drawCircle", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("x", Int), primitiveArg("y", Int), primitiveArg("r", Int)}},
		},
	},
	{
		name: "Keyboard",
		subroutines: []Subroutine{
			{Name: "keyPressed", Type: Function, Return: DataType{Main: Char}},
			{Name: "readChar", Type: Function, Return: DataType{Main: Char}},
			{Name: "readLine", Type: Function, Return: DataType{Main: Object, Subtype: "String"}, Arguments: []Variable{objectArg("message", "String")}},
			{Name: "readInt", Type: Function, Return: DataType{Main: Int}, Arguments: []Variable{objectArg("message", "String")}},
		},
	},
	{
		name: "Memory",
		subroutines: []Subroutine{
			{Name: "peek", Type: Function, Return: DataType{Main: Int}, Arguments: []Variable{primitiveArg("address", Int)}},
			{Name: "poke", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("address", Int), primitiveArg("value", Int)}},
			{Name: "alloc", Type: Function, Return: DataType{Main: Object, Subtype: "Array"}, Arguments: []Variable{primitiveArg("size", Int)}},
			{Name: "deAlloc", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{objectArg("o", "Array")}},
		},
	},
	{
		name: "Sys",
		subroutines: []Subroutine{
			{Name: "halt", Type: Function, Return: DataType{Main: Void}},
			{Name: "error", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("errorCode", Int)}},
			{Name: "wait", Type: Function, Return: DataType{Main: Void}, Arguments: []Variable{primitiveArg("duration", Int)}},
		},
	},
}
