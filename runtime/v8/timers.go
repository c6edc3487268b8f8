package v8

import (
	"time"

	"github.com/yaoapp/kun/log"
	"rogchap.com/v8go"
)

// bindTimers define the timer globals
func (interp *Interpreter) bindTimers() error {
	iso := interp.iso
	global := interp.ctx.Global()
	timers := interp.timers

	callback := func(name string, fn *v8go.Function, args []v8go.Valuer) func() {
		return func() {
			if interp.ctx == nil {
				return
			}
			if _, err := fn.Call(v8go.Undefined(iso), args...); err != nil {
				log.Error("[V8] %s: %s", name, evaluationError(err).Error())
			}
			interp.ctx.PerformMicrotaskCheckpoint()
		}
	}

	schedule := func(name string, repeat bool) *v8go.FunctionTemplate {
		return v8go.NewFunctionTemplate(iso, func(info *v8go.FunctionCallbackInfo) *v8go.Value {
			args := info.Args()
			if len(args) < 1 || !args[0].IsFunction() {
				message, _ := v8go.NewValue(iso, name+": the callback must be a function")
				return iso.ThrowException(message)
			}

			fn, _ := args[0].AsFunction()
			var delay time.Duration
			if len(args) > 1 {
				delay = time.Duration(args[1].Int32()) * time.Millisecond
			}

			rest := []v8go.Valuer{}
			if len(args) > 2 {
				for _, arg := range args[2:] {
					rest = append(rest, arg)
				}
			}

			id, _ := v8go.NewValue(iso, int32(timers.Add(delay, repeat, callback(name, fn, rest))))
			return id
		})
	}

	immediate := v8go.NewFunctionTemplate(iso, func(info *v8go.FunctionCallbackInfo) *v8go.Value {
		args := info.Args()
		if len(args) < 1 || !args[0].IsFunction() {
			message, _ := v8go.NewValue(iso, "setImmediate: the callback must be a function")
			return iso.ThrowException(message)
		}

		fn, _ := args[0].AsFunction()
		rest := []v8go.Valuer{}
		for _, arg := range args[1:] {
			rest = append(rest, arg)
		}
		timers.Immediate(callback("setImmediate", fn, rest))
		return v8go.Undefined(iso)
	})

	cancel := v8go.NewFunctionTemplate(iso, func(info *v8go.FunctionCallbackInfo) *v8go.Value {
		args := info.Args()
		if len(args) > 0 {
			timers.Cancel(int64(args[0].Int32()))
		}
		return v8go.Undefined(iso)
	})

	fns := map[string]*v8go.FunctionTemplate{
		"setTimeout":    schedule("setTimeout", false),
		"setInterval":   schedule("setInterval", true),
		"setImmediate":  immediate,
		"clearTimeout":  cancel,
		"clearInterval": cancel,
	}

	for name, tmpl := range fns {
		if err := global.Set(name, tmpl.GetFunction(interp.ctx)); err != nil {
			return err
		}
	}
	return nil
}
