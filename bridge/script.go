package bridge

import (
	"fmt"
	"regexp"
)

// Bootstrap the main script. It redirects the console to the log native and
// exposes module and require to evaluated scripts.
const Bootstrap = `
globalThis.global = globalThis;
(function () {
	function format(args) {
		var parts = [];
		for (var i = 0; i < args.length; i++) {
			var arg = args[i];
			if (typeof arg === 'string') {
				parts.push(arg);
				continue;
			}
			if (arg instanceof Error) {
				parts.push(String(arg.stack || arg));
				continue;
			}
			var text;
			try { text = JSON.stringify(arg); } catch (e) { text = undefined; }
			parts.push(text === undefined ? String(arg) : text);
		}
		return parts.join(' ');
	}
	function writer(severity) {
		return function () { process.natives.log(severity, format(arguments)); };
	}
	global.console = {
		error: writer(1),
		warn: writer(2),
		info: writer(3),
		log: writer(4),
		debug: writer(5),
		trace: writer(5)
	};
})();
global.module = module;
global.require = require;
console.log('Node: Loaded main.js.');
`

// EvaluateHelper evaluates the caller's script code in the global scope and
// reports the result (or error) through the result and error natives.
// Promise results are reported once settled.
const EvaluateHelper = `(function (callId, scriptCode) {
	var result;
	try {
		result = (0, eval)(scriptCode);
	} catch (e) {
		process.natives.error(callId, e);
		return;
	}
	function report(value) {
		var resultJson;
		try {
			resultJson = JSON.stringify(value);
		} catch (e) {
			process.natives.error(callId, e);
			return;
		}
		process.natives.result(callId, resultJson);
	}
	if (result !== null && typeof result === 'object' && typeof result.then === 'function') {
		result.then(report, function (e) { process.natives.error(callId, e); });
		return;
	}
	report(result);
})`

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ValidFunctionName check if the name can be declared as a global function
func ValidFunctionName(name string) bool {
	return identifier.MatchString(name)
}

// CallFromScript the script that declares a global function forwarding its
// arguments, as a JSON array, to the persistent callback of the token
func CallFromScript(name string, token Token) string {
	// arguments is array-like, slice it for a proper JSON array
	return fmt.Sprintf(
		"globalThis[%q] = function %s() { process.natives.call('%s', JSON.stringify(Array.prototype.slice.call(arguments))); };",
		name, name, token.String(),
	)
}
