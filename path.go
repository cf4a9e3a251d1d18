package main

import (
	"fmt"
	"os"
	"strings"
)

// Path points a data source at either a flat file or a mongo
// collection.
type Path struct {
	File string
	DB   string
	Coll string
}

// NewPath parses {fspath} or {db}.{coll}. An empty string is an absent
// source. Anything that exists on disk, contains a path separator or
// ends in .csv is a file, even when it does not exist yet, so exports
// can create it.
func NewPath(filePathOrColl string) (*Path, error) {
	s := strings.TrimSpace(filePathOrColl)
	if s == "" {
		return nil, nil
	}
	if _, err := os.Stat(s); err == nil {
		return &Path{File: s}, nil
	}
	if strings.ContainsRune(s, os.PathSeparator) || strings.HasSuffix(s, ".csv") {
		return &Path{File: s}, nil
	}
	splitted := strings.Split(s, ".")
	if len(splitted) != 2 {
		return nil, fmt.Errorf("source is neither a file nor db.coll: %s", s)
	}
	return &Path{DB: splitted[0], Coll: splitted[1]}, nil
}

func (p *Path) IsFile() bool {
	return p != nil && p.File != ""
}

func (p *Path) String() string {
	if p == nil {
		return "<none>"
	}
	if p.File != "" {
		return p.File
	}
	return p.DB + "." + p.Coll
}
