package env

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// Load reads dotenv files in order. Variables already present in the process
// environment win, as do values from earlier files. Missing files are skipped.
func Load(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}
