package core

// IconPalette is the fixed glyph set offered by the wallet and category
// forms. Free-form icons are rejected so every client renders the same
// set consistently.
var IconPalette = []string{
	"💰", "🏦", "💳", "🪙", "🛒", "🍽️", "🏠", "🚗", "✈️", "🎁",
	"🏥", "📚", "🎬", "⚡", "📱", "👕", "🐾", "💼", "📈", "☕",
}

var iconSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(IconPalette))
	for _, icon := range IconPalette {
		s[icon] = struct{}{}
	}
	return s
}()

func ValidIcon(icon string) bool {
	_, ok := iconSet[icon]
	return ok
}

// DefaultIcon is used when a form submits no icon.
func DefaultIcon() string {
	return IconPalette[0]
}
