// Package mapgen генерирует демонстрационные слоистые карты из шума Перлина.
package mapgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/tilemap"
)

// Параметры шума
const (
	perlinAlpha   = 2.0 // сглаживание
	perlinBeta    = 2.0 // частота
	perlinOctaves = 3
)

// Тайлы по умолчанию: земля и по одному тайлу на каждый уровень плато
const (
	DefaultGroundTile  tilemap.TileID = 1
	DefaultPlateauTile tilemap.TileID = 10
)

var ErrInvalidOptions = errors.New("mapgen: неверные параметры")

// Options параметры генерации
type Options struct {
	Width  int
	Height int
	Layers int   // всего слоёв, включая землю
	Seed   int64 // одинаковый сид - одинаковая карта

	// Scale шаг по шуму на клетку; меньше - крупнее плато
	Scale float64
	// Thresholds порог шума (0..1) для слоя k+1; недостающие пороги
	// продолжают последний с шагом 0.1
	Thresholds []float64

	TileWidth  int
	TileHeight int

	// Encoding "" - массив id, "base64" - Tiled base64 (Compression: "", zlib, gzip, zstd)
	Encoding    string
	Compression string
}

func (o *Options) defaults() {
	if o.Layers == 0 {
		o.Layers = 3
	}
	if o.Scale == 0 {
		o.Scale = 0.12
	}
	if len(o.Thresholds) == 0 {
		o.Thresholds = []float64{0.55}
	}
	if o.TileWidth == 0 {
		o.TileWidth = 64
	}
	if o.TileHeight == 0 {
		o.TileHeight = 32
	}
}

func (o Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: размер %dx%d", ErrInvalidOptions, o.Width, o.Height)
	}
	if o.Layers < 1 {
		return fmt.Errorf("%w: слоёв %d", ErrInvalidOptions, o.Layers)
	}
	if o.Encoding != "" && o.Encoding != "base64" {
		return fmt.Errorf("%w: кодировка %q", ErrInvalidOptions, o.Encoding)
	}
	return nil
}

// threshold порог слоя layer (1..Layers-1)
func (o Options) threshold(layer int) float64 {
	if layer-1 < len(o.Thresholds) {
		return o.Thresholds[layer-1]
	}
	last := o.Thresholds[len(o.Thresholds)-1]
	return last + 0.1*float64(layer-len(o.Thresholds))
}

// Generate строит карту: слой 0 целиком земля, слой k заполнен там, где
// шум выше порога слоя k и заполнен слой k-1 (плато лежат друг на друге).
func Generate(opts Options) (*tilemap.Descriptor, error) {
	opts.defaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	noise := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, opts.Seed)
	heights := make([]float64, opts.Width*opts.Height)
	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			// Noise2D в -1..1, приводим к 0..1
			n := noise.Noise2D(float64(x)*opts.Scale, float64(y)*opts.Scale)
			heights[y*opts.Width+x] = (n + 1) / 2
		}
	}

	desc := &tilemap.Descriptor{
		Width:       opts.Width,
		Height:      opts.Height,
		TileWidth:   opts.TileWidth,
		TileHeight:  opts.TileHeight,
		Orientation: "isometric",
	}

	prev := make([]tilemap.TileID, len(heights))
	for i := range prev {
		prev[i] = DefaultGroundTile
	}

	for z := 0; z < opts.Layers; z++ {
		ids := prev
		if z > 0 {
			ids = make([]tilemap.TileID, len(heights))
			limit := opts.threshold(z)
			for i, h := range heights {
				if prev[i] != tilemap.Empty && h > limit {
					ids[i] = DefaultPlateauTile + tilemap.TileID(z-1)
				}
			}
		}

		layer, err := encodeLayer(opts, z, ids)
		if err != nil {
			return nil, err
		}
		desc.Layers = append(desc.Layers, layer)
		prev = ids
	}

	return desc, nil
}

func encodeLayer(opts Options, z int, ids []tilemap.TileID) (tilemap.LayerDescriptor, error) {
	layer := tilemap.LayerDescriptor{
		Name:   layerName(z),
		Type:   tilemap.LayerTypeTile,
		Width:  opts.Width,
		Height: opts.Height,
	}

	if opts.Encoding == "base64" {
		text, err := tilemap.EncodeBase64(ids, opts.Compression)
		if err != nil {
			return layer, err
		}
		raw, err := json.Marshal(text)
		if err != nil {
			return layer, err
		}
		layer.Data = raw
		layer.Encoding = "base64"
		layer.Compression = opts.Compression
		return layer, nil
	}

	raw, err := json.Marshal(ids)
	if err != nil {
		return layer, err
	}
	layer.Data = raw
	return layer, nil
}

func layerName(z int) string {
	if z == 0 {
		return "ground"
	}
	return fmt.Sprintf("plateau%d", z)
}

// WriteFile генерирует карту и записывает её в path
func WriteFile(path string, opts Options) (*tilemap.Descriptor, error) {
	desc, err := Generate(opts)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("запись карты %s: %w", path, err)
	}

	logging.Info("🗺️ Карта %dx%d (%d слоёв, сид %d) записана в %s", desc.Width, desc.Height, len(desc.Layers), opts.Seed, path)
	return desc, nil
}
