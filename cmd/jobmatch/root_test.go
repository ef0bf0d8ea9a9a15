package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kailas-cloud/jobmatch/internal/version"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"serve", "sync", "repair", "version"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"env", "log-level"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), version.Version) {
		t.Errorf("unexpected output %q", out.String())
	}
}
