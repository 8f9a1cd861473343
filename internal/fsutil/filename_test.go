package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "My Video", "My Video"},
		{"reserved characters", `a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"whitespace runs", "too   many\t\tspaces", "too many spaces"},
		{"surrounding whitespace", "  padded  ", "padded"},
		{"empty", "", "download"},
		{"only reserved", "???", "___"},
		{"only whitespace", "   ", "download"},
		{"path traversal", "../../etc/passwd", ".._.._etc_passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeCapsLength(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := Sanitize(long)
	if utf8.RuneCountInString(got) != 240 {
		t.Errorf("length = %d, want 240", utf8.RuneCountInString(got))
	}

	// Multi-byte input must not be split mid-rune.
	got = Sanitize(strings.Repeat("ü", 300))
	if !utf8.ValidString(got) {
		t.Error("truncation produced invalid UTF-8")
	}
	if utf8.RuneCountInString(got) != 240 {
		t.Errorf("rune length = %d, want 240", utf8.RuneCountInString(got))
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{"My Video", `a<b>c`, "  padded  ", "", strings.Repeat("y", 500)}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestResolveUnique(t *testing.T) {
	dir := t.TempDir()

	got := ResolveUnique(dir, "clip", "mp4")
	if want := filepath.Join(dir, "clip.mp4"); got != want {
		t.Errorf("first resolution = %q, want %q", got, want)
	}

	for _, name := range []string{"clip.mp4", "clip (1).mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	got = ResolveUnique(dir, "clip", "mp4")
	if want := filepath.Join(dir, "clip (2).mp4"); got != want {
		t.Errorf("collision resolution = %q, want %q", got, want)
	}
}

func TestResolveUniqueCreatesFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "folder")
	got := ResolveUnique(dir, "clip", "mp4")
	if want := filepath.Join(dir, "clip.mp4"); got != want {
		t.Errorf("resolution = %q, want %q", got, want)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("folder was not created: %v", err)
	}
}

func TestResolveUniqueDottedExt(t *testing.T) {
	dir := t.TempDir()
	got := ResolveUnique(dir, "clip", ".mp3")
	if want := filepath.Join(dir, "clip.mp3"); got != want {
		t.Errorf("resolution = %q, want %q", got, want)
	}
}

func TestRemovePartials(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "clip.mp4")
	partial := output + PartialSuffix
	for _, name := range []string{output, partial} {
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	RemovePartials(output)

	for _, name := range []string{output, partial} {
		if _, err := os.Stat(name); !os.IsNotExist(err) {
			t.Errorf("%s still exists", name)
		}
	}

	// Missing files and empty paths are quietly ignored.
	RemovePartials(output)
	RemovePartials("")
}

func TestSweepFolder(t *testing.T) {
	dir := t.TempDir()
	leftovers := map[string]int{
		"a.mp4.part":        10,
		"b.mp4.part.Frag12": 20,
		"c.tmp":             5,
		"d.ytdl":            3,
	}
	for name, size := range leftovers {
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "keep.mp4"), make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}

	removed, freed := SweepFolder(dir)
	if removed != 4 {
		t.Errorf("removed = %d, want 4", removed)
	}
	if freed != 38 {
		t.Errorf("freed = %d, want 38", freed)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.mp4")); err != nil {
		t.Errorf("completed file was removed: %v", err)
	}
}
