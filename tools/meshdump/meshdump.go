package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mogaika/sceneimport/config"
	"github.com/mogaika/sceneimport/drivers/assimpdriver"
	"github.com/mogaika/sceneimport/importer"
	"github.com/mogaika/sceneimport/loader"
	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/marshal"
	"github.com/mogaika/sceneimport/utils"
	"github.com/mogaika/sceneimport/walker"

	_ "github.com/mogaika/sceneimport/drivers/gltfdriver"
	_ "github.com/mogaika/sceneimport/drivers/objdriver"
)

func summary(path string, mm *marshal.MarshaledMesh) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: mesh %d %q under %s\n", path, mm.MeshIndex, mm.Name, strings.Join(mm.NodePath, "/"))
	fmt.Fprintf(&b, "  points %d, triangles %d", mm.NumPoints(), mm.NumTriangles())
	if mm.IsPointCloud() {
		b.WriteString(" (point cloud)")
	}
	fmt.Fprintf(&b, ", normals %v, tcoords %v, colours %v\n", mm.Normals.Present(), mm.TexCoords.Present(), mm.Colors.Present())
	fmt.Fprintf(&b, "  material %d, texture %v\n", mm.MaterialIndex, mm.Texture)
	for _, row := range mm.TransformRows() {
		fmt.Fprintf(&b, "  %8.3f %8.3f %8.3f %8.3f\n", row[0], row[1], row[2], row[3])
	}
	return b.String()
}

func main() {
	var cfgPath, engine, node string
	var dump, asJson, all bool
	var workers, channel int
	flag.StringVar(&cfgPath, "config", "", "Path to yaml config")
	flag.StringVar(&engine, "engine", "", "Engine to try first (gltf, obj, assimp)")
	flag.StringVar(&node, "node", "", "Name of node to take the mesh from, first node with a mesh when empty")
	flag.BoolVar(&dump, "dump", false, "Spew dump of marshaled meshes")
	flag.BoolVar(&asJson, "json", false, "Print marshaled meshes as json")
	flag.BoolVar(&all, "all", false, "Every mesh of the scene instead of the first one")
	flag.IntVar(&workers, "j", 4, "Files loaded in parallel")
	flag.IntVar(&channel, "uv", -1, "Texture coordinate channel, overrides import.texcoord_channel")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Println("Provide model files to dump. Use --help if you stuck.")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
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
	prefer := cfg.Import.Engines
	if engine != "" {
		prefer = append([]string{engine}, prefer...)
	}
	importer.Default.Prefer(prefer...)

	opts := loader.Options{
		MaxDepth: cfg.Import.MaxDepth,
		Marshal: marshal.Options{
			TexCoordChannel: cfg.Import.TexCoordChannel,
			ColorChannel:    cfg.Import.ColorChannel,
			TexCoordsWithW:  cfg.Import.TexCoordsWithW,
		},
	}
	if channel >= 0 {
		opts.Marshal.TexCoordChannel = channel
	}
	if node != "" {
		opts.Selector = walker.ByName(node)
	}
	l := loader.New(opts)
	ctx := context.Background()

	type fileMeshes struct {
		path   string
		meshes []*marshal.MarshaledMesh
		err    error
	}
	var files []fileMeshes
	if all {
		for _, path := range flag.Args() {
			meshes, err := l.LoadScene(ctx, path)
			files = append(files, fileMeshes{path: path, meshes: meshes, err: err})
		}
	} else {
		for _, r := range l.LoadFiles(ctx, flag.Args(), workers) {
			f := fileMeshes{path: r.Path, err: r.Err}
			if r.Mesh != nil {
				f.meshes = []*marshal.MarshaledMesh{r.Mesh}
			}
			files = append(files, f)
		}
	}

	failed := false
	for _, f := range files {
		if f.err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "%s: %v\n", f.path, f.err)
			continue
		}
		switch {
		case dump:
			fmt.Print(utils.SDump(f.meshes))
		case asJson:
			data, err := json.MarshalIndent(f.meshes, "", "  ")
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(string(data))
		default:
			for _, mm := range f.meshes {
				fmt.Print(summary(f.path, mm))
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}
