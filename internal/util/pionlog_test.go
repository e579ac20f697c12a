package util

import "testing"

func TestPionLoggerAllLevels(t *testing.T) {
	EnableDebug()
	l := PionLoggerFactory{}.NewLogger("ice")
	if got := l.(pionLogger).prefix; got != "pion/ice: " {
		t.Fatalf("prefix = %q", got)
	}

	l.Trace("dropped")
	l.Tracef("dropped %d", 1)
	l.Debug("debug")
	l.Debugf("debug %d", 1)
	l.Info("info")
	l.Infof("info %d", 1)
	l.Warn("warn")
	l.Warnf("warn %d", 1)
	l.Error("error")
	l.Errorf("error %d", 1)
}
