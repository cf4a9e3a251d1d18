package streets

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "streets")
