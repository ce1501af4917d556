package property

import "errors"

var (
	// ErrAlreadyAttached is returned when a property that already belongs to a
	// holder is added to another (or the same) holder.
	ErrAlreadyAttached = errors.New("property: already attached to a holder")
	// ErrDuplicateType is returned when the holder already owns a property of
	// the same concrete type.
	ErrDuplicateType = errors.New("property: holder already has this type")
	// ErrNotFound is returned by lookups that require the property to exist.
	ErrNotFound = errors.New("property: not found")
	// ErrRemoved is returned when a removed instance is added again.
	ErrRemoved = errors.New("property: instance was removed and cannot be reattached")
	// ErrNilProperty is returned when a nil property is added.
	ErrNilProperty = errors.New("property: nil property")
	// ErrUndefined is returned when a type or name has no registered definition.
	ErrUndefined = errors.New("property: type not defined")
	// ErrInvalidDefinition is returned by Define for malformed registrations.
	ErrInvalidDefinition = errors.New("property: invalid definition")
	// ErrTagMismatch is returned on load when a record's codec tag does not
	// match the declared member type.
	ErrTagMismatch = errors.New("property: codec tag does not match member type")
)
