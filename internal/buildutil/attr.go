// Package buildutil extracts rule attributes from parsed BUILD files.
package buildutil

import (
	"slices"

	"github.com/bazelbuild/buildtools/build"
)

// Attr returns the expression assigned to the named keyword argument, or nil.
func Attr(call *build.CallExpr, name string) build.Expr {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if lhs, ok := assign.LHS.(*build.Ident); ok && lhs.Name == name {
			return assign.RHS
		}
	}
	return nil
}

// String extracts a string attribute from a function call by name.
// Returns empty string if the attribute is not found or not a string literal.
func String(call *build.CallExpr, name string) string {
	if str, ok := Attr(call, name).(*build.StringExpr); ok {
		return str.Value
	}
	return ""
}

// Bool extracts a boolean attribute from a function call by name.
// Returns false if the attribute is not found or not True.
func Bool(call *build.CallExpr, name string) bool {
	ident, ok := Attr(call, name).(*build.Ident)
	return ok && ident.Name == "True"
}

// StringList extracts a list of strings attribute from a function call by name.
//
// Concatenations such as `[...] + [...]` are flattened. Operands that cannot
// be evaluated statically, like select() or variables, are skipped, as are
// non-string list elements.
func StringList(call *build.CallExpr, name string) []string {
	expr := Attr(call, name)
	if expr == nil {
		return nil
	}
	return appendStrings(nil, expr)
}

func appendStrings(out []string, expr build.Expr) []string {
	switch e := expr.(type) {
	case *build.ListExpr:
		for _, elem := range e.List {
			if str, ok := elem.(*build.StringExpr); ok {
				out = append(out, str.Value)
			}
		}
	case *build.BinaryExpr:
		if e.Op == "+" {
			out = appendStrings(out, e.X)
			out = appendStrings(out, e.Y)
		}
	}
	return out
}

// FuncName returns the function name from a CallExpr.
// For attribute calls such as native.cc_library() the last component is returned.
// Returns empty string for anything else.
func FuncName(call *build.CallExpr) string {
	switch x := call.X.(type) {
	case *build.Ident:
		return x.Name
	case *build.DotExpr:
		return x.Name
	default:
		return ""
	}
}

// HasTag reports whether tags contains tag.
func HasTag(tags []string, tag string) bool {
	return slices.Contains(tags, tag)
}

// Rules returns the top-level rule invocations of a BUILD file, in file order.
// A rule is a call with a string "name" argument; package(), load() and
// similar calls are not rules.
func Rules(f *build.File) []*build.CallExpr {
	var rules []*build.CallExpr
	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok || FuncName(call) == "" {
			continue
		}
		if String(call, "name") == "" {
			continue
		}
		rules = append(rules, call)
	}
	return rules
}
