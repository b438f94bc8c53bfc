package theme

import (
	"fmt"
	"io"
)

// Banner returns the CLI banner.
func Banner() string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const reset = "\033[0m"

	return "" +
		"  " + magenta + "cdr3q" + reset + "  selection model for CDR3 repertoires\n" +
		cyan + "  C A S S . . . . . F\n" + reset +
		cyan + "  l · i · aa   Q = exp(-E)\n" + reset
}

// PrintBanner writes the banner to w.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner())
}
