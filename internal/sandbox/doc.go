/*
Package sandbox evaluates untrusted JavaScript and reports what it
produced as normalized, JSON-safe data.

# Overview

Each Runtime owns one goja VM. The completion value of a script, the
arguments of every console call and any uncaught thrown value are passed
through the normalize package with the jsvalue host before they leave the
VM, so results never carry live JS objects, cycles or unbounded trees.

The runtime enforces:

  - A call stack limit
  - An execution timeout that also covers normalization of the result
  - Removal of require, process, module and exports
  - A DOM proxy for document queries, optionally parsed from HTML

# Usage Example

	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 4)
	if err != nil {
		return err
	}
	defer pool.Close()

	dom, _ := sandbox.ParseDOM(`<div id="app" class="root">hi</div>`)
	result, err := pool.Execute(ctx, `document.getElementById("app")`, dom)

An uncaught throw is not an error: it is returned in Result.Exception.
*/
package sandbox
