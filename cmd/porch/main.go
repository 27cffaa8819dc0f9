package main

import "github.com/Iron-Ham/porch/internal/cmd"

func main() {
	cmd.Execute()
}
