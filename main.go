package main

import (
	"github.com/ngld/knossos/packages/client-build/cmd"
)

func main() {
	cmd.Execute()
}
