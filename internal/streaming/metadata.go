package streaming

import (
	"os"

	"github.com/google/uuid"
)

// writeFileAtomic writes data to path by first writing to a uuid-suffixed
// temp file in the same directory and renaming over the target, so a crash
// mid-write never leaves a torn stream/topic info file. Mirrors the same
// write-temp-rename idiom OffsetStore.Store uses for offset files.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + "." + uuid.New().String() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
