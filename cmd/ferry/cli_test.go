package main_test

import (
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/meigma/ferry/cmd/ferry/cli"
	"github.com/meigma/ferry/internal/testutil/fakehosting"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"ferry": func() int {
			if err := cli.Execute(); err != nil {
				return 1
			}
			return 0
		},
	}))
}

func TestCLI(t *testing.T) {
	// One fake service for all scripts; each upload gets a fresh ID.
	srv := httptest.NewServer(fakehosting.New(fakehosting.WithBlocked("blocked.txt")))
	// Scripts run as parallel subtests after TestCLI returns.
	t.Cleanup(srv.Close)

	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
		Setup: func(env *testscript.Env) error {
			env.Setenv("API", srv.URL+"/1/")
			// testscript sets HOME=/no-home which is read-only
			env.Setenv("XDG_CONFIG_HOME", env.WorkDir+"/.config")
			return nil
		},
	})
}
