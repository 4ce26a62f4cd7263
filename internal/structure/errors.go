package structure

import "errors"

var (
	ErrUnknownKind    = errors.New("unknown node kind")
	ErrDuplicateNode  = errors.New("node id already present in tree")
	ErrUnknownParent  = errors.New("parent node not found")
	ErrRootAlreadySet = errors.New("tree root already set")
	ErrInvalidLines   = errors.New("end line precedes start line")
)
