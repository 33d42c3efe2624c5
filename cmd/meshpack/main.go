// meshpack is a CLI utility that packages glTF assets into engine-ready
// binary mesh, material and scene files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/meshpack/internal/config"
	"github.com/Faultbox/meshpack/internal/exporter"
	"github.com/Faultbox/meshpack/internal/logger"
	"github.com/Faultbox/meshpack/pkg/gltf"
	"github.com/Faultbox/meshpack/pkg/mesh"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "export":
		cmdExport(args)
	case "info":
		cmdInfo(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshpack - glTF to engine asset converter

Usage:
  meshpack <command> [options]

Commands:
  export [options] <input.gltf|.glb>  Convert an asset to mesh/material/scene files
  info <file.mesh>                    Show packed mesh information
  config init [path]                  Write a default config file

Export options:
  -o <dir>      Output directory (default ".")
  -config <f>   Explicit config file
  -world        Bake node transforms into vertex data
  -flip-u       Mirror the U texture coordinate
  -flip-v       Mirror the V texture coordinate
  -split        Write one mesh file per surface
  -no-vcache    Skip vertex cache optimization
  -debug        Enable debug logging

Examples:
  meshpack export -o assets hero.glb
  meshpack export -world -flip-v scene.gltf
  meshpack info assets/hero.mesh`)
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	outDir := fs.String("o", "", "Output directory")
	configPath := fs.String("config", "", "Path to config file")
	world := fs.Bool("world", false, "Bake node transforms into vertex data")
	flipU := fs.Bool("flip-u", false, "Mirror the U texture coordinate")
	flipV := fs.Bool("flip-v", false, "Mirror the V texture coordinate")
	split := fs.Bool("split", false, "Write one mesh file per surface")
	noVCache := fs.Bool("no-vcache", false, "Skip vertex cache optimization")
	fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshpack export [options] <input.gltf|.glb>")
		os.Exit(1)
	}
	input := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags override the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.Output.Dir = *outDir
		case "world":
			cfg.Export.WorldSpace = *world
		case "flip-u":
			cfg.Export.FlipU = *flipU
		case "flip-v":
			cfg.Export.FlipV = *flipV
		case "split":
			cfg.Output.PerSurface = *split
		case "no-vcache":
			cfg.Export.VertexCache = !*noVCache
		case "debug":
			cfg.Logging.Level = "debug"
		}
	})

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	m, err := gltf.Load(input)
	if err != nil {
		logger.Fatal("loading input failed", zap.String("input", input), zap.Error(err))
	}
	logger.Info("asset loaded",
		zap.String("input", input),
		zap.Int("nodes", len(m.Nodes)),
		zap.Int("surfaces", len(m.Surfaces)),
		zap.Int("materials", len(m.Materials)))

	e := exporter.New(exporter.Options{
		OutDir:      cfg.Output.Dir,
		WorldSpace:  cfg.Export.WorldSpace,
		PerSurface:  cfg.Output.PerSurface,
		VertexCache: cfg.Export.VertexCache,
		FlipU:       cfg.Export.FlipU,
		FlipV:       cfg.Export.FlipV,
	}, logger.Log)

	if err := e.Export(m); err != nil {
		logger.Fatal("export failed", zap.Error(err))
	}
	logger.Info("export complete", zap.String("output", cfg.Output.Dir))
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshpack info <file.mesh>")
		os.Exit(1)
	}

	info, err := mesh.ReadInfoFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mesh:       %s\n", args[0])
	fmt.Printf("Version:    %d\n", info.Version)
	fmt.Printf("Attributes: %s (%d bytes/vertex)\n", info.Attributes, info.Attributes.VertexSize())
	fmt.Printf("Vertices:   %d\n", info.VertexCount())
	fmt.Printf("Indices:    %d (%d triangles)\n", info.IndexCount(), info.IndexCount()/3)
	fmt.Println()
	fmt.Println("Submeshes:")
	for i, sub := range info.Submeshes {
		fmt.Printf("  %2d %-40s %7d indices  base %d\n",
			i, sub.Name, sub.IndexCount, sub.BaseVertex)
	}
}

func cmdConfig(args []string) {
	if len(args) < 1 || args[0] != "init" {
		fmt.Fprintln(os.Stderr, "Usage: meshpack config init [path]")
		os.Exit(1)
	}

	path := filepath.Join(config.ConfigDir(), "config.yaml")
	if len(args) > 1 {
		path = args[1]
	}

	if err := config.Default().SaveTo(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}
