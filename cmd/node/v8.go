//go:build v8

package main

import (
	_ "github.com/yaoapp/node/runtime/v8"
)
