package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("GLOSSA_TEST_NAME", "toki")
	var s sample
	if err := Parse([]byte("name: ${GLOSSA_TEST_NAME}\nport: 1\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "toki" {
		t.Fatalf("name = %q", s.Name)
	}
}

func TestParseValidates(t *testing.T) {
	s := sample{Port: 5}
	err := Parse([]byte("port: 0\n"), &s)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseKeepsUnsetFields(t *testing.T) {
	s := sample{Name: "default", Port: 5}
	if err := Parse([]byte("port: 6\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "default" || s.Port != 6 {
		t.Fatalf("got %+v", s)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	s := sample{Port: 5}

	found, err := LoadOptional(filepath.Join(dir, "missing.yaml"), &s)
	if err != nil || found {
		t.Fatalf("found = %v, err = %v", found, err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	found, err = LoadOptional(path, &s)
	if err != nil || !found || s.Port != 7 {
		t.Fatalf("found = %v, err = %v, s = %+v", found, err, s)
	}

	if err := os.WriteFile(path, []byte("port: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptional(path, &s); err == nil {
		t.Fatal("broken yaml accepted")
	}
}
