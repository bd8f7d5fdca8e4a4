package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieGuide writes step-by-step instructions for copying a site's Cookie header from a browser
func ShowCookieGuide(w io.Writer, host string) {
	if host == "" {
		host = "the site"
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "COPYING BROWSER COOKIES")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Some pages only serve audio to visitors who passed a check on %s.\n", host)
	fmt.Fprintln(w, "Reusing your browser's cookies lets audiograb look like that visitor.")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "STEP 1: Open %s in your browser and load a page with audio\n", host)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   • Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   • Safari: enable the Develop menu in Preferences, then Cmd+Option+I")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Network tab, refresh the page (F5), click the first document request")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 4: Under Request Headers copy the whole value of the 'Cookie:' line")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "TIPS:")
	fmt.Fprintln(w, "   • Pasting the full line including 'Cookie:' is fine")
	fmt.Fprintln(w, "   • Cookies expire, run 'audiograb cookies set' again when downloads start failing")
	fmt.Fprintln(w, "   • Cookies for example.com are also used for its subdomains")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Cookies are kept in the system keychain, or an encrypted file when no keychain is available.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

// ShowQuickGuide writes a condensed version for experienced users
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "Quick guide: F12 → Network → refresh → first request → Request Headers → copy the Cookie value")
}
