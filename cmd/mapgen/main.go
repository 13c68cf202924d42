// mapgen записывает демонстрационную слоистую карту из шума Перлина.
package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/mapgen"
)

func main() {
	var (
		out         = flag.String("out", "maps/generated.json", "файл карты")
		width       = flag.Int("width", 40, "ширина в клетках")
		height      = flag.Int("height", 40, "высота в клетках")
		layers      = flag.Int("layers", 3, "количество слоёв, включая землю")
		seed        = flag.Int64("seed", 1, "сид шума")
		scale       = flag.Float64("scale", 0.12, "шаг шума на клетку")
		thresholds  = flag.String("thresholds", "0.55,0.7", "пороги плато через запятую")
		encoding    = flag.String("encoding", "", `"" - массив id, base64 - формат Tiled`)
		compression = flag.String("compression", "", "сжатие base64: zlib, gzip, zstd")
	)
	flag.Parse()

	logging.SetDefaultLogger(logging.NewWriterLogger("mapgen", os.Stdout, logging.INFO))

	th, err := parseThresholds(*thresholds)
	if err != nil {
		log.Fatalf("❌ Пороги: %v", err)
	}

	_, err = mapgen.WriteFile(*out, mapgen.Options{
		Width:       *width,
		Height:      *height,
		Layers:      *layers,
		Seed:        *seed,
		Scale:       *scale,
		Thresholds:  th,
		Encoding:    *encoding,
		Compression: *compression,
	})
	if err != nil {
		log.Fatalf("❌ Генерация карты: %v", err)
	}
}

func parseThresholds(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
