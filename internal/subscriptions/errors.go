package subscriptions

import "errors"

// ErrNotFound indicates the subscription does not exist or belongs to
// another user.
var ErrNotFound = errors.New("subscription not found")
