package entitlement

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageHint is what the contract page itself shows about the renewal state.
type PageHint struct {
	ButtonText  string
	Waiting     bool
	WaitMinutes int // 0 when the button text carries no number
	Hours       int
	HasHours    bool
}

var (
	waitRe   = regexp.MustCompile(`(?i)wait\s+(\d+)\s*(\w+)?`)
	digitsRe = regexp.MustCompile(`\d+`)
)

// ParseContractPage reads the renew button and the accumulated-time counter
// from the contract page HTML. ok is false when neither element is present.
func ParseContractPage(body []byte) (hint PageHint, ok bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageHint{}, false
	}

	btn := doc.Find("#renew-free-server-btn").First()
	if btn.Length() > 0 {
		ok = true
		hint.ButtonText = strings.Join(strings.Fields(btn.Text()), " ")
		if m := waitRe.FindStringSubmatch(hint.ButtonText); m != nil {
			hint.Waiting = true
			n, _ := strconv.Atoi(m[1])
			if strings.HasPrefix(strings.ToLower(m[2]), "h") {
				n *= 60
			}
			hint.WaitMinutes = n
		} else if strings.Contains(strings.ToLower(hint.ButtonText), "wait") {
			hint.Waiting = true
		}
	}

	acc := doc.Find("#accumulated-time").First()
	if acc.Length() > 0 {
		ok = true
		if d := digitsRe.FindString(acc.Text()); d != "" {
			if n, err := strconv.Atoi(d); err == nil {
				hint.Hours = n
				hint.HasHours = true
			}
		}
	}
	return hint, ok
}
