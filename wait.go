package node

import (
	"context"
)

// The blocking helpers wait for the completion callback or the context.
// They must not be called from a callback running on the worker goroutine.

// StartWait start the engine and wait for the result
func (engine *Engine) StartWait(ctx context.Context, dir string) error {
	ch := make(chan error, 1)
	engine.Start(dir, func(err error) { ch <- err })
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopWait stop the engine and wait for the result
func (engine *Engine) StopWait(ctx context.Context) error {
	ch := make(chan error, 1)
	engine.Stop(func(err error) { ch <- err })
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type result struct {
	json string
	err  error
}

// CallScriptWait evaluate the script code and wait for the result JSON
func (engine *Engine) CallScriptWait(ctx context.Context, code string) (string, error) {
	ch := make(chan result, 1)
	engine.CallScript(code, func(resultJSON string, err error) {
		ch <- result{json: resultJSON, err: err}
	})
	select {
	case res := <-ch:
		return res.json, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
