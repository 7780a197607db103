package relay

import (
	"sync/atomic"

	"github.com/a-essam23/go-vrsync/pkg/spatial"
)

// palette hands out avatar colors round-robin.
type palette struct {
	next   atomic.Uint32
	colors []spatial.Color
}

func newPalette() *palette {
	return &palette{colors: []spatial.Color{
		spatial.ColorFromBytes(0xe6, 0x19, 0x4b),
		spatial.ColorFromBytes(0x3c, 0xb4, 0x4b),
		spatial.ColorFromBytes(0x43, 0x63, 0xd8),
		spatial.ColorFromBytes(0xf5, 0x82, 0x31),
		spatial.ColorFromBytes(0x91, 0x1e, 0xb4),
		spatial.ColorFromBytes(0x42, 0xd4, 0xf4),
		spatial.ColorFromBytes(0xf0, 0x32, 0xe6),
		spatial.ColorFromBytes(0xbf, 0xef, 0x45),
	}}
}

func (p *palette) Next() spatial.Color {
	i := p.next.Add(1) - 1
	return p.colors[int(i)%len(p.colors)]
}
