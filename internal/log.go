package internal

import "github.com/sirupsen/logrus"

// ConfigureLogging sets logrus's global level from a textual level name
// (trace/debug/info/warn/error), mirroring the config.*.level knob dendrite
// exposes for its own syncapi debug logging. Unrecognized levels fall back
// to info.
func ConfigureLogging(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("unrecognized log level, defaulting to info")
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}
