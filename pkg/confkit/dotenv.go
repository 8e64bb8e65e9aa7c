package confkit

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads .env files found between this source file and the
// repository root. The first call wins; later calls are no-ops. Variables
// already set in the environment are kept unless DOTENV_OVERLOAD=1.
// NO_DOTENV=1 disables loading entirely and ENV_FILE pins an explicit file.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}

	overload := os.Getenv("DOTENV_OVERLOAD") == "1"
	load := func(paths ...string) {
		if overload {
			_ = godotenv.Overload(paths...)
		} else {
			_ = godotenv.Load(paths...)
		}
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		load(envFile)
		return
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		walkUp(filepath.Dir(file), func(dir string) bool {
			load(filepath.Join(dir, ".env"))
			return isRepoRoot(dir)
		})
		return
	}

	load(".env")
}
