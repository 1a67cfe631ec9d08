package main

import (
	"github.com/OFFIS-RIT/followgraph/internal/bootstrap"
	"github.com/OFFIS-RIT/followgraph/internal/server"
	"github.com/OFFIS-RIT/followgraph/internal/util"
)

func main() {
	util.LoadEnv()
	bootstrap.InitLogger()

	server.Init()
}
