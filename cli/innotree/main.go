package main

import (
	"os"

	innotreecmder "github.com/Goer17/InnoTree/cmd/innotree"
)

func main() {
	cmd := innotreecmder.NewInnoTreeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
