// Package utils receives NetFlow datagrams and dispatches them to the
// decoders and to user callbacks.
package utils

import (
	"github.com/sirupsen/logrus"
)

// Logger is satisfied by *logrus.Logger and *logrus.Entry.
type Logger interface {
	logrus.FieldLogger
}

func defaultLogger() Logger {
	return logrus.StandardLogger()
}
