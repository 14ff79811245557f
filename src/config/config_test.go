package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	conf := NewDefaultConfig()
	conf.SetDataDir("/tmp/community")

	if conf.DatabaseDir != filepath.Join("/tmp/community", DefaultBadgerFile) {
		t.Fatalf("DatabaseDir should follow the data dir, got %s", conf.DatabaseDir)
	}
	if conf.GraphFile != filepath.Join("/tmp/community", DefaultGraphFile) {
		t.Fatalf("GraphFile should follow the data dir, got %s", conf.GraphFile)
	}
	if conf.Keyfile() != filepath.Join("/tmp/community", DefaultKeyfile) {
		t.Fatalf("unexpected Keyfile %s", conf.Keyfile())
	}

	conf = NewDefaultConfig()
	conf.DatabaseDir = "/var/db"
	conf.SetDataDir("/tmp/community")
	if conf.DatabaseDir != "/var/db" {
		t.Fatalf("explicit DatabaseDir should be kept, got %s", conf.DatabaseDir)
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"":      logrus.DebugLevel,
	}
	for in, want := range cases {
		if got := LogLevel(in); got != want {
			t.Fatalf("LogLevel(%q) should be %v, not %v", in, want, got)
		}
	}
}

func TestLoggerPrefix(t *testing.T) {
	conf := NewTestConfig(t, logrus.DebugLevel)
	if p := conf.Logger().Data["prefix"]; p != "crosswalk" {
		t.Fatalf("prefix should be crosswalk, not %v", p)
	}
}
