package jxl

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the package-level logger used for the single structured event
// emitted per Encode/EncodeSequence call. It defaults to a human-readable
// console writer at info level; callers embedding this package in a
// service typically replace it with SetLogger to match their own JSON
// sink and level.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel).With().Timestamp().Logger()

// SetLogger replaces the package-level Logger, mirroring the
// logger-injection pattern of swapping out a package-level interface
// value, here backed by zerolog instead of a bespoke interface.
func SetLogger(l zerolog.Logger) {
	Logger = l
}
