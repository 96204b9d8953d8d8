package cmd

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"new", "run", "tasks", "status", "serve", "version"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "log-format"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag %q not defined", name)
		}
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc", "today")
	if appVersion != "1.2.3" || appCommit != "abc" || appDate != "today" {
		t.Errorf("version info not set: %s %s %s", appVersion, appCommit, appDate)
	}
}
