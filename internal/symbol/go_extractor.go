package symbol

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// GoExtractor extracts symbols from Go source using go/ast, mirroring the
// teacher's decision to parse Go natively rather than via tree-sitter.
type GoExtractor struct{}

func (e *GoExtractor) Extract(path string, content []byte) ([]Symbol, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var symbols []Symbol
	pkgName := file.Name.Name

	ast.Inspect(file, func(n ast.Node) bool {
		switch decl := n.(type) {
		case *ast.GenDecl:
			for _, spec := range decl.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					symbols = append(symbols, goTypeSymbol(ts, fset, pkgName))
				}
			}
		case *ast.FuncDecl:
			symbols = append(symbols, goFuncSymbol(decl, fset, pkgName))
		}
		return true
	})
	return symbols, nil
}

func goTypeSymbol(spec *ast.TypeSpec, fset *token.FileSet, pkg string) Symbol {
	typ := TypeStruct
	switch spec.Type.(type) {
	case *ast.InterfaceType:
		typ = TypeInterface
	case *ast.StructType:
		typ = TypeStruct
	default:
		typ = TypeClass
	}
	return Symbol{
		Type:          typ,
		Name:          spec.Name.Name,
		QualifiedName: pkg + "." + spec.Name.Name,
		Language:      "go",
		StartLine:     fset.Position(spec.Pos()).Line,
		EndLine:       fset.Position(spec.End()).Line,
	}
}

func goFuncSymbol(decl *ast.FuncDecl, fset *token.FileSet, pkg string) Symbol {
	typ := TypeFunction
	qualified := pkg + "." + decl.Name.Name
	signature := decl.Name.Name + "("

	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		typ = TypeMethod
		recvType := exprString(decl.Recv.List[0].Type)
		qualified = pkg + "." + recvType + "." + decl.Name.Name
		signature = recvType + "." + signature
	}

	var params []string
	if decl.Type.Params != nil {
		for _, p := range decl.Type.Params.List {
			t := exprString(p.Type)
			if len(p.Names) == 0 {
				params = append(params, t)
				continue
			}
			for _, n := range p.Names {
				params = append(params, n.Name+" "+t)
			}
		}
	}
	signature += strings.Join(params, ", ") + ")"

	return Symbol{
		Type:          typ,
		Name:          decl.Name.Name,
		QualifiedName: qualified,
		Signature:     signature,
		Language:      "go",
		StartLine:     fset.Position(decl.Pos()).Line,
		EndLine:       fset.Position(decl.End()).Line,
	}
}

// exprString renders a simple type expression back to source text without
// reformatting the whole file through go/printer.
func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return "map[" + exprString(t.Key) + "]" + exprString(t.Value)
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.InterfaceType:
		return "interface{}"
	default:
		return ""
	}
}
