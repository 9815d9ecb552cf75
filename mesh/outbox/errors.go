package outbox

import "errors"

var errNotFound = errors.New("outbox: entry not found")
