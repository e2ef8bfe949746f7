package tools

import "errors"

var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrInvalidArgument = errors.New("invalid argument")
)
