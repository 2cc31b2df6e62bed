package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a document id: a base36 timestamp followed by random hex,
// so ids created later sort after earlier ones.
func NewID() string {
	ts := strconv.FormatInt(time.Now().UnixNano(), 36)
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ts + "-" + rnd[:12]
}

// NewUserID returns a random UUIDv4 string.
func NewUserID() string { return uuid.NewString() }
