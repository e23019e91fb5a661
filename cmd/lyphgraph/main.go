// Command lyphgraph serves a declared lyph graph schema as a REST API.
package main

import "github.com/mesh-intelligence/lyphgraph/internal/cli"

func main() {
	cli.Execute()
}
