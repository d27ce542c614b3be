package config

import (
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
)

func newFlags(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("listen", ":8080", "")
	fs.String("db", "mnemo.db", "")
	fs.Bool("debug", false, "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadFlagDefaults(t *testing.T) {
	cfg, err := Load("", newFlags(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.DB != "mnemo.db" || cfg.Debug {
		t.Errorf("unexpected config from flag defaults: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	if err := os.WriteFile(path, []byte("listen: \":7000\"\ndb: file.db\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MNEMO_DB", "env.db")

	cfg, err := Load(path, newFlags(t, "--debug"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":7000" {
		t.Errorf("file should beat flag default: got listen %q", cfg.Listen)
	}
	if cfg.DB != "env.db" {
		t.Errorf("env should beat file: got db %q", cfg.DB)
	}
	if !cfg.Debug {
		t.Error("explicit flag should be honored")
	}
}

func TestLoadExplicitFlagWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	if err := os.WriteFile(path, []byte("listen: \":7000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, newFlags(t, "--listen", ":9999"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Errorf("changed flag should beat file: got listen %q", cfg.Listen)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), newFlags(t)); err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
}
