package ui

import (
	"bytes"
	"sync"

	"github.com/fogleman/gg"
)

const iconSize = 32

var (
	iconOnce sync.Once
	iconData []byte
)

// iconBytes returns the tray icon: an orange disc with a bright core.
func iconBytes() []byte {
	iconOnce.Do(func() {
		iconData = renderIcon(iconSize)
	})
	return iconData
}

func renderIcon(size int) []byte {
	dc := gg.NewContext(size, size)
	c := float64(size) / 2

	dc.DrawCircle(c, c, c-1)
	dc.SetHexColor("#ff8a00")
	dc.Fill()

	dc.DrawCircle(c, c, c*0.35)
	dc.SetHexColor("#fff1c2")
	dc.Fill()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}
