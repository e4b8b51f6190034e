package main

import (
	"log"

	"github.com/Tubbz-alt/lrad/src/lradcmd"
)

func main() {
	if err := lradcmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
