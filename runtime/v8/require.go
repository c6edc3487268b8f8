package v8

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/exception"
	"rogchap.com/v8go"
)

// the CommonJS loader, resolve and compile are implemented in Go
const loader = `(function (loader) {
	var cache = {};
	function require(name) {
		var file = loader.resolve(String(name));
		if (file === undefined) {
			throw new Error("Cannot find module '" + name + "'");
		}
		if (cache[file]) {
			return cache[file].exports;
		}
		var compiled = loader.compile(file);
		if (typeof compiled === 'string') {
			throw new SyntaxError(compiled);
		}
		var module = { id: file, filename: file, loaded: false, exports: {} };
		cache[file] = module;
		try {
			compiled.call(module.exports, module.exports, require, module, file, ".");
		} catch (e) {
			delete cache[file];
			throw e;
		}
		module.loaded = true;
		return module.exports;
	}
	require.cache = cache;
	globalThis.require = require;
})`

// the module wrapper is kept on the first line, the line numbers of the
// stack traces stay the same as the source
const wrapperHead = "(function (exports, require, module, __filename, __dirname) {"

func (interp *Interpreter) bindRequire() error {
	iso := interp.iso
	tmpl := v8go.NewObjectTemplate(iso)

	err := tmpl.Set("resolve", v8go.NewFunctionTemplate(iso, func(info *v8go.FunctionCallbackInfo) *v8go.Value {
		args := info.Args()
		if len(args) < 1 {
			return v8go.Undefined(iso)
		}

		file, has := interp.resolve(args[0].String())
		if !has {
			return v8go.Undefined(iso)
		}

		value, err := v8go.NewValue(iso, file)
		if err != nil {
			return v8go.Undefined(iso)
		}
		return value
	}))
	if err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}

	err = tmpl.Set("compile", v8go.NewFunctionTemplate(iso, func(info *v8go.FunctionCallbackInfo) *v8go.Value {
		args := info.Args()
		if len(args) < 1 {
			return v8go.Undefined(iso)
		}

		file := args[0].String()
		source, _ := interp.source(file)
		fn, err := info.Context().RunScript(wrapperHead+source+"\n})", file)
		if err != nil {
			message, _ := v8go.NewValue(iso, err.Error())
			return message
		}
		return fn
	}))
	if err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}

	instance, err := tmpl.NewInstance(interp.ctx)
	if err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}

	install, err := interp.ctx.RunScript(loader, "node:require")
	if err != nil {
		return evaluationError(err)
	}

	fn, err := install.AsFunction()
	if err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}

	if _, err := fn.Call(v8go.Undefined(iso), instance); err != nil {
		return evaluationError(err)
	}
	return nil
}

// resolve find the defined file first, then the file of the working directory
func (interp *Interpreter) resolve(name string) (string, bool) {
	file := normalize(name)
	if file == "" {
		return "", false
	}

	for _, candidate := range []string{file, file + ".js", file + ".json"} {
		if _, has := interp.files[candidate]; has {
			return candidate, true
		}
	}

	if interp.root == "" {
		return "", false
	}

	for _, candidate := range []string{file, file + ".js", file + ".json"} {
		info, err := os.Stat(filepath.Join(interp.root, filepath.FromSlash(candidate)))
		if err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func (interp *Interpreter) source(file string) (string, bool) {
	source, has := interp.files[file]
	if !has {
		data, err := os.ReadFile(filepath.Join(interp.root, filepath.FromSlash(file)))
		if err != nil {
			log.Warn("[V8] require %s: %s", file, err.Error())
			return "", false
		}
		source = string(data)
	}

	if strings.HasSuffix(file, ".json") {
		return "module.exports = " + source + ";", true
	}
	return source, true
}

func normalize(name string) string {
	name = filepath.ToSlash(strings.TrimSpace(name))
	for {
		switch {
		case strings.HasPrefix(name, "/"):
			name = strings.TrimPrefix(name, "/")
		case strings.HasPrefix(name, "./"):
			name = strings.TrimPrefix(name, "./")
		case strings.HasPrefix(name, "node_modules/"):
			name = strings.TrimPrefix(name, "node_modules/")
		default:
			return name
		}
	}
}
