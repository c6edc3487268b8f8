// Package transform compiles the TypeScript script files to CommonJS
// JavaScript and maps the stack traces of the compiled code back.
package transform

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Result the transform result
type Result struct {
	Code []byte
	Map  []byte
}

// TypeScript transform the typescript code to a CommonJS module with an
// external source map, the map is registered under the file name
func TypeScript(tsCode string, file string) (*Result, error) {
	result := api.Transform(tsCode, api.TransformOptions{
		Loader:     api.LoaderTS,
		Format:     api.FormatCommonJS,
		Target:     api.ESNext,
		Sourcefile: file,
		Sourcemap:  api.SourceMapExternal,
	})

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("transform ts code error: %v", messages(result.Errors))
	}

	if err := SourceMaps.Add(file, result.Map); err != nil {
		return nil, err
	}
	return &Result{Code: result.Code, Map: result.Map}, nil
}

// JavaScript check the javascript code syntax, the code is returned as it is
func JavaScript(jsCode string, file string) error {
	result := api.Transform(jsCode, api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: file,
	})
	if len(result.Errors) > 0 {
		return fmt.Errorf("transform js code error: %v", messages(result.Errors))
	}
	return nil
}

// IsTypeScript check if the file is a typescript file
func IsTypeScript(file string) bool {
	return strings.HasSuffix(strings.ToLower(file), ".ts")
}

// IsJavaScript check if the file is a javascript file
func IsJavaScript(file string) bool {
	return strings.HasSuffix(strings.ToLower(file), ".js")
}

func messages(errs []api.Message) string {
	lines := []string{}
	for _, err := range errs {
		if err.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d %s", err.Location.File, err.Location.Line, err.Location.Column, err.Text))
			continue
		}
		lines = append(lines, err.Text)
	}
	return strings.Join(lines, "\n")
}
