package fetchpipe

import "testing"

func TestNeedsBrowserTier(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"empty body", "", true},
		{"short body", "<html><body>hi</body></html>", true},
		{"react root marker", `<html><body><div id="root"></div></body></html>`, true},
		{"next root marker", `<html><body><div id="__next"></div></body></html>`, true},
		{"noscript javascript warning", "<html><body>" +
			"<noscript>You need to enable JavaScript to run this app. " +
			"This application requires scripting support and will not function " +
			"correctly without it, so please enable JavaScript in your browser settings." +
			"</noscript></body></html>", true},
		{"ordinary long content", longHTMLFixture(), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := needsBrowserTier([]byte(tc.body)); got != tc.want {
				t.Errorf("needsBrowserTier(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func longHTMLFixture() string {
	body := "<html><body><article><h1>Title</h1>"
	for i := 0; i < 20; i++ {
		body += "<p>This is a paragraph of real documentation content that is long enough to avoid every short-body heuristic.</p>"
	}
	body += "</article></body></html>"
	return body
}
