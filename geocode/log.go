package geocode

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "geocode")
