// internal/api/handler/timeout.go
package handler

import "time"

// DefaultTimeout bounds every request, store round-trips included.
const DefaultTimeout = 15 * time.Second
