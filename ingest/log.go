package ingest

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "ingest")
