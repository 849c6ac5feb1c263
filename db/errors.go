package db

import (
	"strings"

	"github.com/teranos/promanage/errors"
)

// ErrDatabaseClosed is returned when work arrives after the connection was
// closed, typically while the server is shutting down.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err is ErrDatabaseClosed or the driver's
// own closed-connection error, which can only be recognised by its message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
