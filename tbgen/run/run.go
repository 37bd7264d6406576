// Package run implements the main logic for the tbgen tool in a testable way.
package run

import (
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/toejough/go-reorder"
)

// OutputFile is the name of the generated file, per package.
const OutputFile = "taskbed_routes.gen.go"

// annotation marks a handler func for route generation; the rest of the
// comment is the route pattern.
const annotation = "// taskbed:route "

// Vars.
var (
	errNoRoutes     = errors.New("no taskbed:route annotations found")
	errEmptyPattern = errors.New("taskbed:route annotation has no pattern")
	errBadHandler   = errors.New("taskbed:route func is not an http handler")
)

// Interfaces - Public

// FileSystem interface for mocking.
type FileSystem interface {
	Glob(pattern string) ([]string, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// OSFileSystem is the FileSystem the tbgen binary runs against. Errors pass
// through unwrapped; the os errors already name the file.
type OSFileSystem struct{}

func (OSFileSystem) Glob(pattern string) ([]string, error) { return filepath.Glob(pattern) }

func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// Functions - Public

// Run executes the tbgen tool logic. It takes command-line arguments (an
// optional package directory, defaulting to "."), a FileSystem for file
// operations, and a writer for progress output. On success it writes a
// taskbed_routes.gen.go into the scanned package declaring TaskbedRoutes().
func Run(args []string, fileSys FileSystem, out io.Writer) error {
	dir := "."
	if len(args) > 1 {
		dir = args[1]
	}

	paths, err := fileSys.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return err
	}

	sort.Strings(paths)

	pkgName := ""

	var routes []routeDecl

	for _, path := range paths {
		if strings.HasSuffix(path, "_test.go") || strings.HasSuffix(path, ".gen.go") {
			continue
		}

		src, err := fileSys.ReadFile(path)
		if err != nil {
			return err
		}

		fileRoutes, filePkg, err := parseFile(string(src))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		if pkgName == "" {
			pkgName = filePkg
		}

		routes = append(routes, fileRoutes...)
	}

	if len(routes) == 0 {
		return fmt.Errorf("%w under %s", errNoRoutes, dir)
	}

	code, err := generate(pkgName, routes)
	if err != nil {
		return err
	}

	outputPath := filepath.Join(dir, OutputFile)

	err = fileSys.WriteFile(outputPath, []byte(code), 0o600)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "tbgen: wrote %d route(s) to %s\n", len(routes), outputPath)

	return nil
}

// Functions - Private

// generate renders the route-table source and normalizes its declaration
// order.
func generate(pkgName string, routes []routeDecl) (string, error) {
	var builder strings.Builder

	builder.WriteString("// Code generated by tbgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&builder, "package %s\n\n", pkgName)
	builder.WriteString("import (\n\t\"net/http\"\n\n\t\"github.com/taskbed/taskbed\"\n)\n\n")
	builder.WriteString("// TaskbedRoutes returns the route table declared by taskbed:route\n")
	builder.WriteString("// annotations, in declaration order.\n")
	builder.WriteString("func TaskbedRoutes() taskbed.RouteTable {\n\treturn taskbed.RouteTable{\n")

	for _, route := range routes {
		fmt.Fprintf(&builder, "\t\t{Pattern: %q, Handler: http.HandlerFunc(%s)},\n",
			route.pattern, route.handler)
	}

	builder.WriteString("\t}\n}\n")

	ordered, err := reorder.Source(builder.String())
	if err != nil {
		return "", fmt.Errorf("normalizing generated code: %w", err)
	}

	return ordered, nil
}

// parseFile returns the route declarations and package name of one source
// file.
func parseFile(src string) ([]routeDecl, string, error) {
	dec := decorator.NewDecorator(token.NewFileSet())

	file, err := dec.Parse(src)
	if err != nil {
		return nil, "", fmt.Errorf("parsing: %w", err)
	}

	var routes []routeDecl

	for _, decl := range file.Decls {
		fn, ok := decl.(*dst.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}

		for _, comment := range fn.Decs.Start.All() {
			rest, ok := strings.CutPrefix(comment, annotation)
			if !ok {
				continue
			}

			pattern := strings.TrimSpace(rest)
			if pattern == "" {
				return nil, "", fmt.Errorf("%w: func %s", errEmptyPattern, fn.Name.Name)
			}

			if !isHandlerSignature(fn) {
				return nil, "", fmt.Errorf(
					"%w: func %s must be func(http.ResponseWriter, *http.Request)",
					errBadHandler, fn.Name.Name)
			}

			routes = append(routes, routeDecl{pattern: pattern, handler: fn.Name.Name})
		}
	}

	return routes, file.Name.Name, nil
}

// isHandlerSignature checks the annotated func takes exactly a response
// writer and a request and returns nothing. The check is shallow on purpose;
// the compiler enforces the real types when the generated file builds.
func isHandlerSignature(fn *dst.FuncDecl) bool {
	if fn.Type.Results != nil && len(fn.Type.Results.List) > 0 {
		return false
	}

	params := 0
	for _, field := range fn.Type.Params.List {
		params += max(len(field.Names), 1)
	}

	return params == 2
}

// unexported types.

// routeDecl is one annotated handler.
type routeDecl struct {
	pattern string
	handler string
}
