// mapcheck проверяет карты и таблицу зон: загружает каждую карту, печатает
// слои и замены точек появления, ищет переходы на несуществующие карты.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/annel0/isoworld/internal/config"
	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML конфигурация (maps_dir, zones_file, правила тайлов)")
		mapsDir    = flag.String("maps", "", "каталог карт (перекрывает конфигурацию)")
		zonesFile  = flag.String("zones", "", "таблица зон (перекрывает конфигурацию)")
		strict     = flag.Bool("strict", false, "считать замены точек появления ошибкой")
		verbose    = flag.Bool("v", false, "подробный лог")
	)
	flag.Parse()

	level := logging.WARN
	if *verbose {
		level = logging.DEBUG
	}
	logging.SetDefaultLogger(logging.NewWriterLogger("mapcheck", os.Stderr, level))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *mapsDir != "" {
		cfg.Engine.MapsDir = *mapsDir
	}
	if *zonesFile != "" {
		cfg.Engine.ZonesFile = *zonesFile
	}

	tables, err := config.LoadZones(cfg.Engine.ZonesFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	source := &world.FileSource{
		MapsDir:     cfg.Engine.MapsDir,
		Tables:      tables,
		Rules:       cfg.Engine.WalkRules(),
		SpawnRadius: cfg.Engine.SpawnRadius,
	}

	names := zoneNames(cfg.Engine.MapsDir, tables)
	problems := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ЗОНА\tРАЗМЕР\tСЛОИ\tТАЙЛЫ\tПРОХОДИМО\tТОЧКИ\tПЕРЕХОДЫ\tСТАТУС")

	var notes []string
	for _, name := range names {
		z, err := source.Build(context.Background(), name)
		if err != nil {
			problems++
			notes = append(notes, fmt.Sprintf("❌ %s: %v", name, err))
			continue
		}

		status := "ok"
		if z.Fallback() {
			status = "нет файла карты"
			problems++
		}

		for _, sub := range z.Substitutions() {
			if sub.Dropped {
				problems++
				notes = append(notes, fmt.Sprintf("❌ %s: точка %q (%d, %d) удалена, проходимых клеток рядом нет",
					name, sub.Key, sub.From.X, sub.From.Y))
				continue
			}
			if *strict {
				problems++
			}
			notes = append(notes, fmt.Sprintf("⚠️ %s: точка %q перенесена (%d, %d) → (%d, %d)",
				name, sub.Key, sub.From.X, sub.From.Y, sub.To.X, sub.To.Y))
		}

		for _, tp := range z.Transitions() {
			if _, known := tables[tp.TargetMap]; !known && !mapExists(source, tp.TargetMap) {
				problems++
				notes = append(notes, fmt.Sprintf("❌ %s: переход (%d, %d) ведёт на неизвестную карту %q",
					name, tp.X, tp.Y, tp.TargetMap))
			}
			if !z.IsWalkable(tp.X, tp.Y) {
				notes = append(notes, fmt.Sprintf("⚠️ %s: клетка перехода (%d, %d) непроходима", name, tp.X, tp.Y))
			}
		}

		tm := z.Tiles()
		st := tm.Stats()
		fmt.Fprintf(w, "%s\t%dx%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			name, tm.Width, tm.Height, st.Layers, st.Tiles, st.WalkableCells,
			len(z.SpawnKeys()), len(z.Transitions()), status)
	}
	w.Flush()

	if len(notes) > 0 {
		fmt.Println()
		fmt.Println(strings.Join(notes, "\n"))
	}

	if problems > 0 {
		fmt.Printf("\n❌ Найдено проблем: %d\n", problems)
		os.Exit(1)
	}
	fmt.Printf("\n✅ Проверено зон: %d\n", len(names))
}

// zoneNames зоны из таблицы и все *.json из каталога карт
func zoneNames(dir string, tables map[string]world.ZoneTable) []string {
	seen := make(map[string]bool)
	for name := range tables {
		seen[name] = true
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	for _, f := range files {
		seen[strings.TrimSuffix(filepath.Base(f), ".json")] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mapExists(source *world.FileSource, name string) bool {
	if world.ValidateZoneName(name) != nil {
		return false
	}
	_, err := os.Stat(source.MapPath(name))
	return err == nil
}
