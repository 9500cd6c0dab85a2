// Package persist provides the write-to-temp-then-rename helper used
// by every snapshot output in the system (all_profits.{json,txt},
// latest_prices.json, configs/{whitelist,blacklist,possible_cycles}),
// per spec §9's design note: "write through temporary files and
// atomic rename for snapshots." Append-only journals (trades/*.csv,
// profits/*.txt) do not use this — they grow monotonically and are
// never safe to clobber wholesale.
package persist

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path by first writing to a sibling
// temp file and renaming it into place, so a reader never observes a
// partially-written file. Best-effort per spec §7 filesystem failure
// semantics: callers log and continue on error, the in-memory
// pipeline stays authoritative.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}
