// Package fsutil owns output path naming: sanitizing titles into
// filesystem-safe stems, resolving collisions, and sweeping partial
// artifacts left behind by interrupted transfers.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// PartialSuffix is the conventional suffix the provider appends to
// in-progress files.
const PartialSuffix = ".part"

const maxStemLength = 240

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00]`)
	spaceRuns    = regexp.MustCompile(`\s+`)

	// resolveMu serializes uniqueness resolution within the process; the
	// flock below covers other processes sharing the folder.
	resolveMu sync.Mutex
)

// Sanitize rewrites name into a stem legal on common filesystems:
// reserved characters become underscores, whitespace runs collapse to a
// single space, and the result is trimmed and capped at 240 characters.
// Empty input (or input that strips to nothing) yields "download".
func Sanitize(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(spaceRuns.ReplaceAllString(name, " "))
	if utf8.RuneCountInString(name) > maxStemLength {
		runes := []rune(name)
		name = strings.TrimRight(string(runes[:maxStemLength]), " ")
	}
	if name == "" {
		return "download"
	}
	return name
}

// ResolveUnique returns a path under folder for baseName.ext that does not
// collide with an existing file, probing "name (1).ext", "name (2).ext"
// and so on. The folder is created when absent; if creation fails the
// current working directory is used instead. Resolution is guarded by an
// advisory lock so concurrent resolvers in other processes serialize, but
// the window between resolution and the provider creating the file is not
// closed.
func ResolveUnique(folder, baseName, ext string) string {
	resolveMu.Lock()
	defer resolveMu.Unlock()

	if err := os.MkdirAll(folder, 0755); err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			cwd = "."
		}
		log.Warn().Str("op", "fsutil/resolve").Err(err).
			Msgf("Cannot create %s, using %s", folder, cwd)
		folder = cwd
	}

	lock := flock.New(filepath.Join(folder, ".vidfetch.lock"))
	if err := lock.Lock(); err == nil {
		defer lock.Unlock()
	}

	ext = strings.TrimPrefix(ext, ".")
	candidate := filepath.Join(folder, join(baseName, ext))
	for i := 1; exists(candidate); i++ {
		candidate = filepath.Join(folder, join(fmt.Sprintf("%s (%d)", baseName, i), ext))
	}
	return candidate
}

// RemovePartials deletes the output file and its partial-suffix sibling,
// best-effort. Deletion failures are swallowed.
func RemovePartials(outputPath string) {
	if outputPath == "" {
		return
	}
	for _, name := range []string{outputPath, outputPath + PartialSuffix} {
		if exists(name) {
			if err := os.Remove(name); err != nil {
				log.Debug().Str("op", "fsutil/cleanup").Err(err).Msgf("Could not remove %s", name)
			}
		}
	}
}

// SweepFolder removes leftover temporary files in folder matching the
// known partial-artifact patterns and returns the number of bytes freed.
func SweepFolder(folder string) (removed int, freed int64) {
	patterns := []string{"*" + PartialSuffix, "*" + PartialSuffix + ".*", "*.tmp", "*.ytdl"}
	for _, pat := range patterns {
		matches, err := filepath.Glob(filepath.Join(folder, pat))
		if err != nil {
			continue
		}
		for _, fp := range matches {
			info, err := os.Stat(fp)
			if err != nil || info.IsDir() {
				continue
			}
			if err := os.Remove(fp); err != nil {
				continue
			}
			removed++
			freed += info.Size()
		}
	}
	return removed, freed
}

func join(stem, ext string) string {
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
