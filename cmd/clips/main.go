package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"zonewatch/internal/clips"
	"zonewatch/internal/config"
	"zonewatch/internal/dto"
	"zonewatch/internal/logger"
	"zonewatch/internal/repository/sqlite"
)

const usage = `usage: clips [-config file] <command> [flags]

commands:
  list      list recorded clips, newest first
  summary   print clip statistics
  prune     delete clips older than -days (default 7)
  export    copy clips between -from and -to into -out
  index     register clips in the SQLite catalog
  compile   concatenate clips into one video
`

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration")
	clipsDir := flag.String("clips", "", "Directory containing clips (defaults to output.clips_dir)")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	dir := cfg.Output.ClipsDir
	if *clipsDir != "" {
		dir = *clipsDir
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "list":
		runList(dir, args)
	case "summary":
		runSummary(dir)
	case "prune":
		runPrune(dir, args)
	case "export":
		runExport(dir, args)
	case "index":
		runIndex(dir, cfg.Output.SQLitePath, args)
	case "compile":
		runCompile(dir, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		log.Fatalf("Invalid date %q (want YYYY-MM-DD): %v", value, err)
	}
	return t
}

// dayFilters selects clips from the start of from through the end of to.
func dayFilters(from, to string) dto.ClipFilters {
	filters := dto.ClipFilters{After: parseDate(from)}
	if end := parseDate(to); !end.IsZero() {
		filters.Before = end.Add(24*time.Hour - time.Nanosecond)
	}
	return filters
}

func runList(dir string, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	date := fs.String("date", "", "Only clips from this day (YYYY-MM-DD)")
	limit := fs.Int("limit", 0, "Maximum number of clips")
	fs.Parse(args)

	filters := dayFilters(*date, *date)
	filters.Limit = *limit
	list, err := clips.List(dir, filters)
	if err != nil {
		log.Fatalf("Failed to list clips: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No clips found")
		return
	}

	fmt.Printf("📹 %d clip(s) in %s\n\n", len(list), dir)
	for i, c := range list {
		fmt.Printf("%3d. %s  %s  %.2f MB\n", i+1, c.Date.Format("2006-01-02 15:04:05"), c.Name, float64(c.Size)/(1024*1024))
	}
}

func runSummary(dir string) {
	summary, err := clips.Summary(dir)
	if err != nil {
		log.Fatalf("Failed to summarize clips: %v", err)
	}

	fmt.Printf("\n📊 Clip Statistics:\n")
	fmt.Printf("   Total clips: %d\n", summary.Count)
	fmt.Printf("   Total size: %.2f MB\n", float64(summary.TotalSize)/(1024*1024))
	if summary.Count == 0 {
		return
	}
	fmt.Printf("   First alert: %s\n", summary.First.Format("2006-01-02 15:04:05"))
	fmt.Printf("   Last alert: %s\n", summary.Last.Format("2006-01-02 15:04:05"))
	fmt.Printf("   Days covered: %d\n", len(summary.PerDay))
	fmt.Printf("   Per day:\n")
	for day, count := range summary.PerDay {
		fmt.Printf("      - %s: %d clips\n", day, count)
	}
}

func runPrune(dir string, args []string) {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	days := fs.Int("days", 7, "Delete clips older than this many days")
	fs.Parse(args)

	removed, err := clips.Prune(dir, time.Duration(*days)*24*time.Hour, time.Now())
	for _, name := range removed {
		fmt.Printf("   🗑️  Deleted %s\n", name)
	}
	if err != nil {
		log.Fatalf("Failed to delete some clips: %v", err)
	}
	fmt.Printf("✅ Deleted %d clip(s) older than %d days\n", len(removed), *days)
}

func runExport(dir string, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	from := fs.String("from", "", "First day (YYYY-MM-DD)")
	to := fs.String("to", "", "Last day (YYYY-MM-DD)")
	out := fs.String("out", filepath.Join("outputs", "export_"+time.Now().Format("20060102_150405")), "Destination directory")
	fs.Parse(args)

	exported, err := clips.Export(dir, *out, dayFilters(*from, *to))
	if err != nil {
		log.Fatalf("Failed to export clips: %v", err)
	}
	if len(exported) == 0 {
		fmt.Println("ℹ️  No clips found in date range")
		return
	}
	fmt.Printf("✅ Exported %d clip(s) to %s\n", len(exported), *out)
}

func runIndex(dir, dbPath string, args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	db := fs.String("db", dbPath, "Database path")
	fs.Parse(args)

	fmt.Printf("Indexing clips from %s into database %s\n", dir, *db)

	conn, err := sqlite.New(*db)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	repo := sqlite.NewClipRepository(conn)
	added, err := clips.Index(dir, repo)
	if err != nil {
		log.Fatalf("Failed to index clips: %v", err)
	}
	fmt.Printf("✅ Registered %d new clip(s)\n", added)

	all, err := repo.GetAll()
	if err == nil {
		fmt.Printf("   Catalog now holds %d clip(s)\n", len(all))
	}
}

func runCompile(dir string, args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	date := fs.String("date", "", "Only clips from this day (YYYY-MM-DD)")
	out := fs.String("out", filepath.Join("outputs", "compiled_"+time.Now().Format("20060102_150405")+".avi"), "Output file")
	fs.Parse(args)

	list, err := clips.List(dir, dayFilters(*date, *date))
	if err != nil {
		log.Fatalf("Failed to list clips: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	fmt.Printf("🎬 Compiling %d clip(s)...\n", len(list))
	frames, err := clips.Compile(list, *out, logger.New(os.Stdout))
	if err != nil {
		log.Fatalf("Failed to compile clips: %v", err)
	}
	fmt.Printf("✅ Compilation complete: %s (%d frames)\n", *out, frames)
}
