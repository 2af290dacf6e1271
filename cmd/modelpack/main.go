// modelpack builds and inspects GRF model packs: a model index, the models
// it lists and their texture maps in one archive that shaderbench can use as
// its model source.
package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/shaderbench/pkg/formats"
	"github.com/Faultbox/shaderbench/pkg/grf"
)

const indexFile = "index.json"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "pack":
		cmdPack(args)
	case "info":
		cmdInfo(args)
	case "list", "ls":
		cmdList(args)
	case "extract", "x":
		cmdExtract(args)
	case "check":
		cmdCheck(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`modelpack - shaderbench model pack utility

Usage:
  modelpack <command> [options]

Commands:
  pack <dir> <out.grf>               Pack a model directory
  info <file.grf>                    Show archive information
  list <file.grf> [pattern]          List files (optional glob pattern)
  extract <file.grf> <path> [output] Extract file(s) to directory
  check <file.grf|dir>               Parse the index and every model

Examples:
  modelpack pack ./models models.grf
  modelpack list models.grf "*.png"
  modelpack extract models.grf "*" ./out
  modelpack check models.grf`)
}

func openArchive(p string) *grf.Archive {
	archive, err := grf.Open(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return archive
}

func cmdPack(args []string) {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	force := fs.Bool("f", false, "Pack even when the directory has no index.json")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: modelpack pack [-f] <dir> <out.grf>")
		os.Exit(1)
	}
	dir, out := fs.Arg(0), fs.Arg(1)

	if _, err := os.Stat(filepath.Join(dir, indexFile)); err != nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s has no %s (use -f to pack anyway)\n", dir, indexFile)
		os.Exit(1)
	}

	n, err := grf.PackDir(dir, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Packed %d files into %s\n", n, out)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelpack info <file.grf>")
		os.Exit(1)
	}

	archive := openArchive(args[0])
	defer archive.Close()

	files := archive.List()

	extCount := make(map[string]int)
	var packed, unpacked uint64
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f))
		if ext == "" {
			ext = "(no ext)"
		}
		extCount[ext]++
		e, _ := archive.Stat(f)
		packed += uint64(e.CompressedSize)
		unpacked += uint64(e.UncompressedSize)
	}

	fmt.Printf("Archive: %s\n", args[0])
	fmt.Printf("Files:   %d\n", len(files))
	fmt.Printf("Size:    %.2f KB (%.2f KB unpacked)\n", float64(packed)/1024, float64(unpacked)/1024)
	if archive.Contains(indexFile) {
		fmt.Printf("Index:   %s\n", indexFile)
	} else {
		fmt.Println("Index:   missing")
	}
	fmt.Println()
	fmt.Println("Files by type:")

	type extStat struct {
		ext   string
		count int
	}
	var stats []extStat
	for ext, count := range extCount {
		stats = append(stats, extStat{ext, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].ext < stats[j].ext
	})

	for _, s := range stats {
		fmt.Printf("  %-10s %d\n", s.ext, s.count)
	}
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelpack list <file.grf> [pattern]")
		os.Exit(1)
	}

	archive := openArchive(fs.Arg(0))
	defer archive.Close()

	pattern := ""
	if fs.NArg() > 1 {
		pattern = strings.ToLower(fs.Arg(1))
	}

	count := 0
	for _, f := range archive.List() {
		if pattern != "" && !matches(pattern, f) {
			continue
		}
		fmt.Println(f)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", count)
	}
}

// matches reports whether a lower-case pattern matches an entry's base name
// as a glob or any part of its path.
func matches(pattern, name string) bool {
	lower := strings.ToLower(name)
	if ok, _ := path.Match(pattern, path.Base(lower)); ok {
		return true
	}
	return strings.Contains(lower, pattern)
}

func cmdExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: modelpack extract <file.grf> <path> [output_dir]")
		os.Exit(1)
	}

	filePath := fs.Arg(1)
	outputDir := "."
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	archive := openArchive(fs.Arg(0))
	defer archive.Close()

	var names []string
	if strings.Contains(filePath, "*") {
		pattern := strings.ToLower(filePath)
		for _, f := range archive.List() {
			if ok, _ := path.Match(pattern, path.Base(strings.ToLower(f))); ok {
				names = append(names, f)
			}
		}
	} else {
		e, ok := archive.Stat(filePath)
		if !ok {
			fmt.Fprintf(os.Stderr, "File not found: %s\n", filePath)
			os.Exit(1)
		}
		names = []string{e.Name}
	}

	extracted := 0
	for _, name := range names {
		local := filepath.FromSlash(name)
		if !filepath.IsLocal(local) {
			fmt.Fprintf(os.Stderr, "Skipping unsafe path: %s\n", name)
			continue
		}
		data, err := archive.Read(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", name, err)
			continue
		}

		// Preserve directory structure
		outputPath := filepath.Join(outputDir, local)
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			continue
		}
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Printf("Extracted: %s (%d bytes)\n", outputPath, len(data))
		extracted++
	}

	fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
}

func cmdCheck(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelpack check <file.grf|dir>")
		os.Exit(1)
	}

	read := readerFor(args[0])

	data, err := read(indexFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	idx, err := formats.ParseModelIndex(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, e := range idx.Entries {
		if msg := checkModel(read, e); msg != "" {
			fmt.Printf("FAIL %-20s %s: %s\n", e.Name, e.Path, msg)
			failed++
			continue
		}
		fmt.Printf("ok   %-20s %s\n", e.Name, e.Path)
	}

	fmt.Fprintf(os.Stderr, "\n%d models, %d failed\n", len(idx.Entries), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func checkModel(read func(string) ([]byte, error), e formats.ModelIndexEntry) string {
	data, err := read(e.Path)
	if err != nil {
		return err.Error()
	}
	m, err := formats.ParseModel(data)
	if err != nil {
		return err.Error()
	}
	if m.TextureFile != "" {
		tex := path.Join(path.Dir(e.Path), m.TextureFile)
		if _, err := read(tex); err != nil {
			return "texture " + tex + ": " + err.Error()
		}
	}
	return ""
}

// readerFor returns a file reader over an archive or a directory.
func readerFor(location string) func(string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(location), ".grf") {
		archive := openArchive(location)
		return archive.Read
	}
	return func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(location, filepath.FromSlash(name)))
	}
}
