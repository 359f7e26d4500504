package main

import (
	"os"

	escacmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca"
)

func main() {
	cmd := escacmder.NewEscaCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
