package main

import cmd "github.com/rohmanhakim/parkfetch/internal/cli"

func main() {
	cmd.Execute()
}
