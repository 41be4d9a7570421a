package main

import "testing"

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "build-graph", "sync-graph", "ask"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
}

func TestAskFlagDefaults(t *testing.T) {
	for flag, want := range map[string]string{"top-k": "6", "neighbor-k": "4", "types": ""} {
		f := askCmd.Flags().Lookup(flag)
		if f == nil {
			t.Fatalf("missing flag %q", flag)
		}
		if f.DefValue != want {
			t.Fatalf("flag %q default: got=%q want=%q", flag, f.DefValue, want)
		}
	}
	if askCmd.Args(askCmd, nil) == nil {
		t.Fatalf("ask should require a question")
	}
}
