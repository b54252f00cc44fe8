package coordinator

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// StatusFormatter returns the status line builder for locale. Persian gets
// "N نتیجه در T میلی‌ثانیه" with native digits; anything else falls back to
// English.
func StatusFormatter(locale string) func(count int, elapsed time.Duration) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	base, _ := tag.Base()
	persian := base.String() == "fa"

	return func(count int, elapsed time.Duration) string {
		// message.Printer is not safe for concurrent use.
		p := message.NewPrinter(tag)
		ms := elapsed.Milliseconds()
		if persian {
			return p.Sprintf("%d نتیجه در %d میلی‌ثانیه", count, ms)
		}
		return p.Sprintf("%d results in %d ms", count, ms)
	}
}
