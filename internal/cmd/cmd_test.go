package cmd

import "testing"

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	if err := searchCmd.Args(searchCmd, []string{}); err == nil {
		t.Error("search should require an argument")
	}
	if err := searchCmd.Args(searchCmd, []string{"Button"}); err != nil {
		t.Errorf("search should accept one argument, got error: %v", err)
	}
	if err := searchCmd.Args(searchCmd, []string{"a", "b"}); err == nil {
		t.Error("search should reject more than one argument")
	}
}

func TestRefreshCmd_RequiresExactlyOneArg(t *testing.T) {
	if err := refreshCmd.Args(refreshCmd, []string{}); err == nil {
		t.Error("refresh should require a root argument")
	}
	if err := refreshCmd.Args(refreshCmd, []string{"/p"}); err != nil {
		t.Errorf("refresh should accept one argument, got error: %v", err)
	}
}

func TestRootCmd_RegistersExpectedSubcommands(t *testing.T) {
	want := []string{"search", "health", "invalidate", "stop", "version", "index", "refresh", "daemon"}
	got := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("rootCmd missing expected subcommand %q", name)
		}
	}
}

func TestDaemonCmd_HiddenWithRunSubcommand(t *testing.T) {
	if !daemonCmd.Hidden {
		t.Error("daemon command should be hidden from help output")
	}
	found := false
	for _, c := range daemonCmd.Commands() {
		if c.Name() == "run" {
			found = true
		}
	}
	if !found {
		t.Error("daemon command should register a run subcommand")
	}
}
