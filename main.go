package main

import "github.com/hectronix2005/Mejor-Inversion/internal/cli"

func main() {
	cli.Execute()
}
