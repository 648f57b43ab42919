package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/tools/go/packages"
)

type packageInfo struct {
	Dir     string
	Name    string
	Structs []structInfo
}

type structInfo struct {
	Name   string
	Fields []fieldInfo
}

type fieldInfo struct {
	Name    string
	VexName string
	// Enc is the expression producing the field's vex.Value; Dec is the
	// statement block restoring the field from a decoded value v.
	Enc string
	Dec string
}

const generatedFile = "vex_gen.go"

var genTemplate = template.Must(template.New("vex_gen").Parse(`// Code generated by vexgen. DO NOT EDIT.

package {{.Name}}

import (
	vex "github.com/vexcodec/vex-go"
)
{{range .Structs}}
// ToTable encodes {{.Name}} into a vex table.
func (x *{{.Name}}) ToTable() (*vex.Table, error) {
	t := vex.NewTable()
{{- range .Fields}}
	if err := t.Set(vex.Str({{printf "%q" .VexName}}), {{.Enc}}); err != nil {
		return nil, err
	}
{{- end}}
	return t, nil
}

// FromTable restores {{.Name}} from a vex table.
func (x *{{.Name}}) FromTable(t *vex.Table) error {
{{- range .Fields}}
	if v, ok := t.Get(vex.Str({{printf "%q" .VexName}})); ok {
		{{.Dec}}
	}
{{- end}}
	return nil
}
{{end}}`))

func collectPackageInfos(root string) ([]*packageInfo, error) {
	dirs := make(map[string]struct{})
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".go") {
			return nil
		}
		if strings.HasSuffix(d.Name(), "_test.go") {
			return nil
		}
		dirs[filepath.Dir(path)] = struct{}{}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	var infos []*packageInfo
	for dir := range dirs {
		pkgInfos, err := parsePackageDir(dir)
		if err != nil {
			return nil, err
		}
		infos = append(infos, pkgInfos...)
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Dir == infos[j].Dir {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].Dir < infos[j].Dir
	})
	return infos, nil
}

func shouldSkipDir(name string) bool {
	switch name {
	case "vendor", "testdata", "node_modules":
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func parsePackageDir(dir string) ([]*packageInfo, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedSyntax | packages.NeedFiles,
		Dir:  dir,
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, err
	}

	var infos []*packageInfo
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			if isSkippablePackageErrors(pkg.Errors) {
				log.Printf("vexgen: skipping %s (no buildable Go files for current tags)", dir)
				continue
			}
			return nil, fmt.Errorf("package load error in %s: %v", dir, pkg.Errors[0])
		}
		if pkg.Name == "" || pkg.Name == "main" {
			continue
		}
		if strings.HasSuffix(pkg.Name, "_test") {
			continue
		}
		info := &packageInfo{Dir: dir, Name: pkg.Name}
		for _, file := range pkg.Syntax {
			if pkg.Fset != nil {
				filename := pkg.Fset.Position(file.Pos()).Filename
				if filename != "" && filepath.Base(filename) == generatedFile {
					continue
				}
			}
			ast.Inspect(file, func(n ast.Node) bool {
				ts, ok := n.(*ast.TypeSpec)
				if !ok {
					return true
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					return false
				}
				if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
					log.Printf("vexgen: skipping %s in %s (generic structs not supported)", ts.Name.Name, dir)
					return false
				}
				fields := collectTaggedFields(ts.Name.Name, st, dir)
				if len(fields) == 0 {
					return false
				}
				info.Structs = append(info.Structs, structInfo{Name: ts.Name.Name, Fields: fields})
				return false
			})
		}
		sort.Slice(info.Structs, func(i, j int) bool {
			return info.Structs[i].Name < info.Structs[j].Name
		})
		infos = append(infos, info)
	}

	return infos, nil
}

func isSkippablePackageErrors(errs []packages.Error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		msg := strings.ToLower(err.Msg)
		if strings.Contains(msg, "build constraints exclude all go files") {
			continue
		}
		if strings.Contains(msg, "no go files") {
			continue
		}
		return false
	}
	return true
}

func collectTaggedFields(structName string, st *ast.StructType, dir string) []fieldInfo {
	var fields []fieldInfo
	for _, field := range st.Fields.List {
		if field.Tag == nil || len(field.Names) == 0 {
			continue
		}
		tagValue, err := strconv.Unquote(field.Tag.Value)
		if err != nil {
			continue
		}
		vexTag := reflect.StructTag(tagValue).Get("vex")
		if vexTag == "" || vexTag == "-" {
			continue
		}
		vexName := strings.Split(vexTag, ",")[0]
		typ := typeString(field.Type)
		for _, name := range field.Names {
			key := vexName
			if key == "" {
				key = name.Name
			}
			enc, dec, ok := fieldCodec(name.Name, typ)
			if !ok {
				log.Printf("vexgen: skipping field %s.%s in %s (type %s not supported)", structName, name.Name, dir, typ)
				continue
			}
			fields = append(fields, fieldInfo{Name: name.Name, VexName: key, Enc: enc, Dec: dec})
		}
	}
	return fields
}

func typeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + typeString(t.Elt)
		}
	}
	return ""
}

// fieldCodec maps a supported field type to its encode expression and
// decode statement.
func fieldCodec(name, typ string) (string, string, bool) {
	f := "x." + name
	switch typ {
	case "string":
		return "vex.Str(" + f + ")",
			"if s, ok := v.AsString(); ok { " + f + " = s }", true
	case "bool":
		return "vex.BoolValue(" + f + ")",
			"if n, ok := v.AsInt64(); ok { " + f + " = n != 0 }", true
	case "int", "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32":
		return "vex.Int(int64(" + f + "))",
			"if n, ok := v.AsInt64(); ok { " + f + " = " + typ + "(n) }", true
	case "float32":
		return "vex.Float32(" + f + ")",
			"if g, ok := v.AsFloat64(); ok { " + f + " = float32(g) }", true
	case "float64":
		return "vex.Float64(" + f + ")",
			"if g, ok := v.AsFloat64(); ok { " + f + " = g }", true
	case "[]byte":
		return "vex.Bin(" + f + ")",
			"if b, ok := v.AsBytes(); ok { " + f + " = b }", true
	case "[]string":
		return "vexStringArray(" + f + ")",
			"if a, ok := v.AsArray(); ok { " + f + " = " + f + "[:0]; for _, e := range a { if s, ok := e.AsString(); ok { " + f + " = append(" + f + ", s) } } }", true
	case "[]int64":
		return "vexIntArray(" + f + ")",
			"if a, ok := v.AsArray(); ok { " + f + " = " + f + "[:0]; for _, e := range a { if n, ok := e.AsInt64(); ok { " + f + " = append(" + f + ", n) } } }", true
	default:
		return "", "", false
	}
}

func usesHelper(info *packageInfo, helper string) bool {
	for _, s := range info.Structs {
		for _, f := range s.Fields {
			if strings.Contains(f.Enc, helper) {
				return true
			}
		}
	}
	return false
}

func generatePackage(info *packageInfo) ([]byte, error) {
	var buf bytes.Buffer
	if err := genTemplate.Execute(&buf, info); err != nil {
		return nil, err
	}
	if usesHelper(info, "vexStringArray") {
		buf.WriteString(`
func vexStringArray(in []string) vex.Value {
	t := vex.NewTable()
	for i, s := range in {
		t.Set(vex.Int(int64(i+1)), vex.Str(s))
	}
	return vex.TableValue(t)
}
`)
	}
	if usesHelper(info, "vexIntArray") {
		buf.WriteString(`
func vexIntArray(in []int64) vex.Value {
	t := vex.NewTable()
	for i, n := range in {
		t.Set(vex.Int(int64(i+1)), vex.Int(n))
	}
	return vex.TableValue(t)
}
`)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source for %s: %w", info.Dir, err)
	}
	return src, nil
}

func writeFileIfChanged(path string, src []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, src) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func removeGeneratedFile(dir string) (bool, error) {
	path := filepath.Join(dir, generatedFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}
