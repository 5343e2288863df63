package annotation

import (
	"fmt"
	"image"
	"io"

	// decoders for custom icons
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Default marker icon dimensions in pixels.
const (
	DefaultIconWidth  = 59
	DefaultIconHeight = 73
)

// Sprite names available in the default scene.
const (
	SpriteDefault   = "default"
	SpriteAirport   = "airport"
	SpriteCafe      = "cafe"
	SpriteEducation = "education"
	SpriteHospital  = "hospital"
	SpriteHotel     = "hotel"
	SpritePark      = "park"
	SpriteShopping  = "shopping"
	SpriteTransit   = "transit"
)

// Icon is a marker icon: a scene sprite or a custom bitmap.
// The zero value is the default icon.
type Icon struct {
	sprite string
	img    image.Image
}

// SpriteIcon returns an icon drawn from a scene sprite.
func SpriteIcon(name string) Icon {
	if name == SpriteDefault {
		return Icon{}
	}
	return Icon{sprite: name}
}

// ImageIcon returns a custom bitmap icon.
func ImageIcon(img image.Image) Icon {
	return Icon{img: img}
}

// LoadIcon decodes a PNG, JPEG, BMP or WebP icon.
func LoadIcon(r io.Reader) (Icon, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return Icon{}, fmt.Errorf("decode icon: %w", err)
	}
	if img.Bounds().Empty() {
		return Icon{}, fmt.Errorf("decode icon: empty %s image", format)
	}
	return ImageIcon(img), nil
}

// IsDefault reports whether this is the built-in default icon.
func (i Icon) IsDefault() bool { return i.sprite == "" && i.img == nil }

// IsCustom reports whether the icon is a client bitmap.
func (i Icon) IsCustom() bool { return i.img != nil }

// Sprite returns the scene sprite name.
func (i Icon) Sprite() string {
	if i.img != nil {
		return ""
	}
	if i.sprite == "" {
		return SpriteDefault
	}
	return i.sprite
}

// Bitmap renders a custom icon scaled to w x h. Nil for sprite icons.
func (i Icon) Bitmap(w, h int) *image.RGBA {
	if i.img == nil || w <= 0 || h <= 0 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), i.img, i.img.Bounds(), xdraw.Over, nil)
	return dst
}

// Size returns the natural size of the icon.
func (i Icon) Size() (int, int) {
	if i.img == nil {
		return DefaultIconWidth, DefaultIconHeight
	}
	b := i.img.Bounds()
	return b.Dx(), b.Dy()
}
