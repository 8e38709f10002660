package main

import "github.com/plenert/payments/payments/cmd"

func main() {
	cmd.Execute()
}
