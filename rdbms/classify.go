package rdbms

import (
	"context"
	"database/sql/driver"
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/siphon-data/siphon/errkind"
)

// persistentMarkers are substrings that identify errors no retry will fix.
var persistentMarkers = []string{
	"syntax",
	"permission denied",
	"login failed",
	"invalid object name",
	"does not exist",
	"access denied",
	"authentication failed",
}

// transientMarkers identify failures worth retrying.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"deadlock",
	"timeout",
	"too many connections",
	"i/o timeout",
}

// ClassifyDbError tags a database error with its taxonomy kind: connection
// acquisition failures and query timeouts are transient, syntax and
// permission errors are persistent. Unknown errors default to persistent so
// we never retry blindly into a failing statement.
func ClassifyDbError(err error) error {
	if err == nil {
		return nil
	}
	var tagged *errkind.Error
	if errors.As(err, &tagged) { // already classified...
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return errkind.Wrap(errkind.KindTransient, err)
	}
	if errors.Is(err, context.Canceled) {
		return errkind.Wrap(errkind.KindCancelled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errkind.Wrap(errkind.KindTransient, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range persistentMarkers {
		if strings.Contains(msg, marker) {
			return errkind.Wrap(errkind.KindPersistent, err)
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return errkind.Wrap(errkind.KindTransient, err)
		}
	}
	return errkind.Wrap(errkind.KindPersistent, err)
}
