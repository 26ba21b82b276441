package main

import (
	"os"

	"zerospeech.io/zrc/cmd/zrc/app"
)

const ErrExitCode = 1

func main() {
	if err := app.NewZrcCmd().Execute(); err != nil {
		os.Exit(ErrExitCode)
	}
}
