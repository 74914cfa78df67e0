// Command simcheck runs and configures simulation scenarios.
package main

import "github.com/sarchlab/simcheck/simcheck/cmd"

func main() {
	cmd.Execute()
}
