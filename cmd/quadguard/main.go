// Command quadguard runs the QuadGuard multi-agent LLM safety mediator.
package main

import "github.com/quadguard/quadguard/cmd/quadguard/cmd"

func main() {
	cmd.Execute()
}
