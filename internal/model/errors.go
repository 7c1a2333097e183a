package model

import "errors"

var (
	// ErrDuplicateName is returned when a name is already taken in its container
	ErrDuplicateName = errors.New("duplicate name")
	// ErrNotFound is returned when a named model element does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotMember is returned when a node no longer belongs to the tree it claims
	ErrNotMember = errors.New("node does not belong to this model")
	// ErrInvalidArgument is returned for malformed operation arguments
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoClient is returned when a remote operation runs on a model without a catalog client
	ErrNoClient = errors.New("model has no catalog client")
	// ErrNoMappingUpdater is returned when mapping updates are requested without an updater
	ErrNoMappingUpdater = errors.New("model has no mapping updater")
)
