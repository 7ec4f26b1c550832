package config

import (
	"os"
	"strings"
)

// StrictOrderedQtyImmutability freezes fulfillment order lines from the
// moment of creation. Normally draft documents may still replace their lines;
// strict mode refuses even that, so a wrong order must be cancelled and
// recreated.
//
// Set via env:
// - STRICT_ORDERED_QTY_IMMUTABLE=true
func StrictOrderedQtyImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_ORDERED_QTY_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// RequireRedisPostingLock makes the best-effort Redis lock mandatory: posting
// fails when the lock cannot be obtained instead of falling back to the MySQL
// advisory lock alone.
//
// Set via env:
// - REQUIRE_REDIS_POSTING_LOCK=true
func RequireRedisPostingLock() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REQUIRE_REDIS_POSTING_LOCK")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
