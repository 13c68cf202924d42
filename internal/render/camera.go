package render

// Camera смещение всей сцены в пикселях
type Camera struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Viewport размер видимой области
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CenterOn камера, при которой точка (x, y, layer) оказывается в центре viewport:
// смещение = половина viewport минус экранная позиция точки без камеры.
func CenterOn(p Projector, vp Viewport, x, y float64, layer int) Camera {
	px, py := p.Project(x, y, layer, Camera{})
	return Camera{
		OffsetX: float64(vp.Width/2) - px,
		OffsetY: float64(vp.Height/2) - py,
	}
}

// Apply применяет смещение камеры к пиксельной позиции
func (c Camera) Apply(px, py float64) (float64, float64) {
	return px + c.OffsetX, py + c.OffsetY
}

// Lerp плавно сдвигает камеру к target на долю t (0..1)
func (c Camera) Lerp(target Camera, t float64) Camera {
	if t <= 0 {
		return c
	}
	if t >= 1 {
		return target
	}
	return Camera{
		OffsetX: c.OffsetX + (target.OffsetX-c.OffsetX)*t,
		OffsetY: c.OffsetY + (target.OffsetY-c.OffsetY)*t,
	}
}
