package ast

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// Tree renders fn as an indented node tree for debugging.
func Tree(fn *FunctionLiteral) string {
	tree := treeprint.New()
	addFunction(tree, fn)
	return tree.String()
}

func addFunction(parent treeprint.Tree, fn *FunctionLiteral) {
	if fn == nil {
		parent.AddNode("<nil function>")
		return
	}
	name := fn.Name
	if fn.IsAnonymous || name == "" {
		name = "<anonymous>"
	}
	branch := parent.AddMetaBranch("function", fmt.Sprintf("%s(%s)", name, strings.Join(fn.Params, ", ")))
	if len(fn.Upvalues) > 0 {
		branch.AddMetaNode("upvalues", strings.Join(fn.Upvalues, ", "))
	}
	if fn.Body == nil {
		return
	}
	for _, stmt := range fn.Body.Statements {
		addNode(branch, stmt)
	}
}

func addNode(parent treeprint.Tree, n Node) {
	meta := fmt.Sprintf("pc %d", n.Pos())
	switch v := n.(type) {
	case *Assign:
		kind := "assign"
		if v.IsDeclaration {
			kind = "local"
		}
		if v.Func != nil {
			addFunction(parent.AddMetaBranch(meta, kind+" "+v.Target), v.Func)
			return
		}
		parent.AddMetaNode(meta, fmt.Sprintf("%s %s = %s", kind, v.Target, v.Value))
	case *Call:
		parent.AddMetaNode(meta, fmt.Sprintf("call %s(%s)", v.Callee, strings.Join(v.Args, ", ")))
	case *Return:
		parent.AddMetaNode(meta, "return "+strings.Join(v.Values, ", "))
	case *BlockMarker:
		parent.AddMetaNode(meta, fmt.Sprintf("%s %q", v.Kind, v.Text))
	case *Raw:
		parent.AddMetaNode(meta, v.Text)
	case *FunctionLiteral:
		addFunction(parent, v)
	default:
		parent.AddMetaNode(meta, fmt.Sprintf("%T", n))
	}
}
