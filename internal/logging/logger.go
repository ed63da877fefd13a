package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global zerolog logger. When console is true a
// human-readable writer is used, otherwise plain JSON lines go to out.
func Setup(level string, console bool, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writer := out
	if console {
		wd, _ := os.Getwd()
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			FormatCaller: func(i interface{}) string {
				path, _ := i.(string)
				if wd != "" {
					if rel, err := filepath.Rel(wd, path); err == nil {
						path = rel
					}
				}
				return fmt.Sprintf("[%s]", path)
			},
		}
	}

	log.Logger = zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Discard silences the global logger. Tests call it to keep output clean.
func Discard() {
	log.Logger = zerolog.Nop()
}
