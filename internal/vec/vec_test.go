package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2Float_Cell(t *testing.T) {
	cases := []struct {
		in   Vec2Float
		want Vec2
	}{
		{Vec2Float{X: 5.05, Y: 5.05}, Vec2{X: 5, Y: 5}},
		{Vec2Float{X: 5.5, Y: 4.49}, Vec2{X: 6, Y: 4}},
		{Vec2Float{X: -0.5, Y: -1.2}, Vec2{X: -1, Y: -1}},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, c.in.Cell(), "клетка для %+v", c.in)
	}
}

func TestVec2_ChebyshevTo(t *testing.T) {
	a := Vec2{X: 3, Y: 3}
	assert.Equal(t, 0, a.ChebyshevTo(a))
	assert.Equal(t, 2, a.ChebyshevTo(Vec2{X: 5, Y: 4}))
	assert.Equal(t, 4, a.ChebyshevTo(Vec2{X: 2, Y: -1}))
}

func TestVec2_Add(t *testing.T) {
	assert.Equal(t, Vec2{X: 2, Y: -1}, Vec2{X: 3, Y: 1}.Add(Vec2{X: -1, Y: -2}))
}
