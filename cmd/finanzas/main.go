package main

import "finanzas/internal/cli"

func main() {
	cli.Execute()
}
