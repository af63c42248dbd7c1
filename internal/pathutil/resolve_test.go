package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveAbsoluteExisting(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveAbsolute(dir)
	if err != nil {
		t.Fatalf("ResolveAbsolute: %v", err)
	}
	// TempDir may itself sit behind a symlink (macOS /tmp); resolve the
	// expectation the same way.
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveAbsoluteNonExistentTail(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "not", "yet", "created")
	got, err := ResolveAbsolute(in)
	if err != nil {
		t.Fatalf("ResolveAbsolute: %v", err)
	}
	base, _ := filepath.EvalSymlinks(dir)
	want := filepath.Join(base, "not", "yet", "created")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveAbsoluteThroughSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveAbsolute(filepath.Join(link, "sub"))
	if err != nil {
		t.Fatalf("ResolveAbsolute: %v", err)
	}
	realResolved, _ := filepath.EvalSymlinks(real)
	if got != filepath.Join(realResolved, "sub") {
		t.Errorf("got %q, want path under the link target", got)
	}
}

func TestResolveAbsoluteEmpty(t *testing.T) {
	got, err := ResolveAbsolute("")
	if err != nil {
		t.Fatalf("ResolveAbsolute: %v", err)
	}
	wd, _ := os.Getwd()
	if got != wd {
		t.Errorf("got %q, want working directory %q", got, wd)
	}
}

func TestResolveAbsoluteTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ResolveAbsolute("~/somewhere")
	if err != nil {
		t.Fatalf("ResolveAbsolute: %v", err)
	}
	homeResolved, _ := filepath.EvalSymlinks(home)
	if got != filepath.Join(homeResolved, "somewhere") && got != filepath.Join(home, "somewhere") {
		t.Errorf("got %q, want under home", got)
	}
}
