package tools

import "errors"

// Sentinel errors for tool registration and dispatch.
var (
	ErrToolNotFound  = errors.New("tools: tool not found")
	ErrDuplicateTool = errors.New("tools: tool already registered")
	ErrInvalidArgs   = errors.New("tools: invalid arguments")
)
