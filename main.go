package main

import "github.com/vibast-solutions/ms-go-school-payments/cmd"

func main() {
	cmd.Execute()
}
