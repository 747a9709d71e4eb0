package memory

import "errors"

var errEventReferenced = errors.New("event is still referenced")
