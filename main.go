package main

import "crmload/cmd"

func main() {
	cmd.Execute()
}
