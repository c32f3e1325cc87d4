package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/mogaika/sceneimport/config"
	"github.com/mogaika/sceneimport/drivers/assimpdriver"
	"github.com/mogaika/sceneimport/importer"
	"github.com/mogaika/sceneimport/loader"
	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/marshal"
	"github.com/mogaika/sceneimport/web"

	_ "github.com/mogaika/sceneimport/drivers/gltfdriver"
	_ "github.com/mogaika/sceneimport/drivers/objdriver"
)

func main() {
	var cfgPath, addr, root, level string
	flag.StringVar(&cfgPath, "config", "", "Path to yaml config")
	flag.StringVar(&addr, "i", "", "Address of server, overrides server.addr")
	flag.StringVar(&root, "dir", "", "Directory with model files, overrides server.root")
	flag.StringVar(&level, "log", "", "Log level, overrides logging.level")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if root != "" {
		cfg.Server.Root = root
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Apply(); err != nil {
		log.Fatal(err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.File)
	defer logger.Sync()

	assimpdriver.Configure(assimpdriver.Options{
		Triangulate:           cfg.Import.Triangulate,
		JoinIdenticalVertices: cfg.Import.JoinIdenticalVertices,
	})
	importer.Default.Prefer(cfg.Import.Engines...)
	logger.Log.Info("engines", zap.Strings("registered", importer.Default.Engines()), zap.Bool("assimp", assimpdriver.Available))

	l := loader.New(loader.Options{
		MaxDepth: cfg.Import.MaxDepth,
		Marshal: marshal.Options{
			TexCoordChannel: cfg.Import.TexCoordChannel,
			ColorChannel:    cfg.Import.ColorChannel,
			TexCoordsWithW:  cfg.Import.TexCoordsWithW,
		},
	})

	s, err := web.NewServer(cfg.Server.Root, l, nil)
	if err != nil {
		logger.Log.Fatal("failed to create server", zap.Error(err))
	}
	defer s.Close()

	if err := web.StartServer(cfg.Server.Addr, s); err != nil {
		logger.Log.Fatal("server stopped", zap.Error(err))
	}
}
