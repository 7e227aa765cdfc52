// Package logging sets up zxferd's log output: stdlib log.Logger backed
// by a rotating file via lumberjack, the same pairing the teacher uses.
//
// Grounded on tdns/logging.go's SetupLogging: log.SetFlags for a fixed
// timestamp format, log.SetOutput pointed at a lumberjack.Logger with
// size/backup/age retention, and a separate CLI-facing setup that skips
// rotation for one-shot command invocations.
package logging

import (
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup points the standard logger at a rotating file. maxSizeMB,
// maxBackups, and maxAgeDays follow lumberjack's own units; zero for any
// of them falls back to 20 MB, 3 backups, and 14 days respectively.
func Setup(logfile string, maxSizeMB, maxBackups, maxAgeDays int) {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.SetOutput(&lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    nonZero(maxSizeMB, 20),
		MaxBackups: nonZero(maxBackups, 3),
		MaxAge:     nonZero(maxAgeDays, 14),
	})
}

// SetupCLI configures logging for a one-shot command invocation (e.g.
// `zxferd diff`): timestamps off, output to stderr, no rotation.
func SetupCLI() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

func nonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
