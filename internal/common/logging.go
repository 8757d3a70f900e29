package common

import (
	"os"

	"github.com/sirupsen/logrus"
)

// SetupLogging configures the standard logger for CLI use. Set OZZY_DEBUG
// to any value for debug output.
func SetupLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	if os.Getenv("OZZY_DEBUG") != "" {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
