// main package for the storybook-service CLI.
package main

import (
	"fmt"
	"os"

	"github.com/book-expert/storybook-service/cmd/storybook/commands"
)

func main() {
	err := commands.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
