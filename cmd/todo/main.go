// Command todo tracks todos from the command line and serves them over HTTP.
package main

import "github.com/mesh-intelligence/todos/internal/cli"

func main() {
	cli.Execute()
}
