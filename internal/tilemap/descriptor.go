package tilemap

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Флаги отражения Tiled в старших битах id
const (
	flagFlippedHorizontally = 0x80000000
	flagFlippedVertically   = 0x40000000
	flagFlippedDiagonally   = 0x20000000
	flagRotatedHexagonal    = 0x10000000

	flagMask = flagFlippedHorizontally | flagFlippedVertically |
		flagFlippedDiagonally | flagRotatedHexagonal
)

// maxLayerBytes предел распакованных данных слоя, когда размер слоя неизвестен
const maxLayerBytes = 16 << 20

// LayerTypeTile тип слоя с тайлами; остальные типы (objectgroup и др.) пропускаются
const LayerTypeTile = "tilelayer"

// Descriptor описание карты в формате Tiled JSON (только нужные поля)
type Descriptor struct {
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	TileWidth   int               `json:"tilewidth"`
	TileHeight  int               `json:"tileheight"`
	Orientation string            `json:"orientation,omitempty"`
	Layers      []LayerDescriptor `json:"layers"`
}

// LayerDescriptor один слой карты
type LayerDescriptor struct {
	Name        string          `json:"name,omitempty"`
	Type        string          `json:"type,omitempty"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Data        json.RawMessage `json:"data,omitempty"`
	Encoding    string          `json:"encoding,omitempty"`
	Compression string          `json:"compression,omitempty"`
}

// IsTileLayer сообщает, несёт ли слой тайлы. Пустой тип считаем тайловым:
// старые карты проекта его не пишут.
func (l LayerDescriptor) IsTileLayer() bool {
	return l.Type == "" || l.Type == LayerTypeTile
}

// DecodeData возвращает плоский массив id слоя без флагов отражения.
// Сжатые данные распаковываются не больше чем на cells id, остальное
// отбрасывается как лишние данные; cells <= 0 - предел maxLayerBytes.
func (l LayerDescriptor) DecodeData(cells int) ([]TileID, error) {
	raw := bytes.TrimSpace(l.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var ids []uint32
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("слой %q: неверный массив data: %w", l.Name, err)
		}
		return maskFlags(ids), nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, fmt.Errorf("слой %q: data не массив и не строка: %w", l.Name, err)
	}

	switch l.Encoding {
	case "csv":
		return decodeCSV(text)
	case "base64":
		return decodeBase64(text, l.Compression, cells)
	default:
		return nil, fmt.Errorf("слой %q: неизвестная кодировка %q", l.Name, l.Encoding)
	}
}

func maskFlags(ids []uint32) []TileID {
	out := make([]TileID, len(ids))
	for i, id := range ids {
		out[i] = TileID(id &^ flagMask)
	}
	return out
}

func decodeCSV(text string) ([]TileID, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	})

	ids := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		ids = append(ids, uint32(v))
	}
	return maskFlags(ids), nil
}

func decodeBase64(text, compression string, cells int) ([]TileID, error) {
	packed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}

	var r io.Reader = bytes.NewReader(packed)
	switch compression {
	case "":
	case "zlib":
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer zr.Close()
		r = zr
	case "gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gr.Close()
		r = gr
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("неизвестное сжатие %q", compression)
	}

	limit := int64(maxLayerBytes)
	if cells > 0 {
		limit = int64(cells) * 4
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("распаковка %s: %w", compression, err)
	}
	if len(raw)%4 != 0 {
		// Хвост неполного id отбрасываем, как и короткие данные
		raw = raw[:len(raw)-len(raw)%4]
	}

	ids := make([]uint32, len(raw)/4)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return maskFlags(ids), nil
}

// EncodeBase64 упаковывает id в формат Tiled base64 с выбранным сжатием.
// Используется генератором карт и тестами.
func EncodeBase64(ids []TileID, compression string) (string, error) {
	raw := make([]byte, len(ids)*4)
	for i, id := range ids {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(id))
	}

	var buf bytes.Buffer
	switch compression {
	case "":
		buf.Write(raw)
	case "zlib":
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return "", err
		}
		if err := zw.Close(); err != nil {
			return "", err
		}
	case "gzip":
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(raw); err != nil {
			return "", err
		}
		if err := gw.Close(); err != nil {
			return "", err
		}
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return "", err
		}
		if _, err := zw.Write(raw); err != nil {
			zw.Close()
			return "", err
		}
		if err := zw.Close(); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("неизвестное сжатие %q", compression)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
