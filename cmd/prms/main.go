package main

import (
	"context"
	"os"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
