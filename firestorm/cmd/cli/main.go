package main

import (
	"github.com/yandex/firestorm/firestorm/internal/cmd"
	"github.com/yandex/firestorm/firestorm/pkg/maxprocs"
)

func main() {
	maxprocs.Adjust()
	cmd.Execute()
}
