package sanitizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestSanitizeGeneral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"script dropped", `<script>x</script><p>hi</p>`, `<p>hi</p>`},
		{"script in body dropped with text", `<p>a</p><script>alert(1)</script><p>b</p>`, `<p>a</p><p>b</p>`},
		{"unknown element with children", `<p>a</p><form><p>inside</p></form>`, `<p>a</p>`},
		{"event handler removed", `<p onclick="x()" class="c">t</p>`, `<p class="c">t</p>`},
		{"wildcard style", `<h2 style="text-align: center">T</h2>`, `<h2 style="text-align: center">T</h2>`},
		{"javascript href", `<a href="javascript:alert(1)">x</a>`, `<a>x</a>`},
		{"obfuscated scheme", `<a href="java&#x09;script:alert(1)">x</a>`, `<a>x</a>`},
		{"relative href", `<a href="/docs?a=1">x</a>`, `<a href="/docs?a=1">x</a>`},
		{"mailto", `<a href="mailto:a@b.c" target="_blank">m</a>`, `<a href="mailto:a@b.c" target="_blank">m</a>`},
		{"img data uri", `<img src="data:image/png;base64,AAAA" width="300px">`, `<img src="data:image/png;base64,AAAA" width="300px">`},
		{"data uri href", `<a href="data:text/html,x">x</a>`, `<a>x</a>`},
		{"img alt not in general", `<img src="a.png" alt="A">`, `<img src="a.png">`},
		{"iframe", `<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ" width="100%" allowfullscreen="true" onload="x"></iframe>`,
			`<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ" width="100%" allowfullscreen="true"></iframe>`},
		{"comments", `<p>a<!-- secret -->b</p>`, `<p>ab</p>`},
		{"style expression", `<p style="width: expression(alert(1))">x</p>`, `<p>x</p>`},
		{"table", `<table><tr><td colspan="2" width="10">a</td></tr></table>`,
			`<table><tbody><tr><td colspan="2">a</td></tr></tbody></table>`},
		{"text escaped", `<p>a &lt;b&gt; &amp; "c"</p>`, `<p>a &lt;b&gt; &amp; &#34;c&#34;</p>`},
		{"void br", `<p>a<br>b</p>`, `<p>a<br>b</p>`},
		{"svg dropped", `<p>a</p><svg><script>x</script></svg>`, `<p>a</p>`},
		{"empty", "", ""},
		{"whitespace", "  \n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in, GeneralPolicy()))
		})
	}
}

func TestSanitizePaste(t *testing.T) {
	in := `<html><head><style>p.MsoNormal{margin:0}</style></head><body>` +
		`<p class="MsoNormal" align="center"><b>Жирный</b> <o:p></o:p></p>` +
		`<table border="1" cellpadding="0"><tr><td width="200" valign="top">a</td></tr></table>` +
		`<img src="a.png" alt="A" v:shapes="x">` +
		`</body></html>`

	got, report := SanitizeWithReport(in, PastePolicy())
	assert.Equal(t, `<p class="MsoNormal" align="center"><b>Жирный</b> </p>`+
		`<table border="1" cellpadding="0"><tbody><tr><td width="200">a</td></tr></tbody></table>`+
		`<img src="a.png" alt="A">`, got)

	assert.Equal(t, 1, report.RemovedElements["style"])
	assert.Equal(t, 1, report.RemovedElements["o:p"])
	assert.Equal(t, 1, report.RemovedAttributes["td@valign"])
	assert.Equal(t, 1, report.RemovedAttributes["img@v:shapes"])
	assert.Equal(t, 4, report.Total())
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		`<script>x</script><p>hi</p>`,
		`<p>a<div>b</div>c</p>`,
		`<pre>` + "\n\nx" + `</pre>`,
		`<table><tr><td>a</td><td><p>b</p></td></tr><tr><th>c</th></tr></table>`,
		`<ul><li>a<ul><li>b</li></ul></li></ul><b><i>x</b>y</i>`,
		`<p>"quoted" 'single' &amp; &nbsp;</p><iframe src="x">a&amp;b</iframe>`,
		`<a href="http://x"><p>a</p></a><img src=blob:abc>`,
		`<li>stray</li><td>cell</td><tr>row</tr>`,
		`<pre><!--c-->` + "\nbaz" + `</pre>`,
		`<pre><script>x</script>` + "\nfoo" + `</pre>`,
		`<pre><!--StartFragment--><span>a</span>` + "\nb" + `</pre>`,
		`<listing><marquee>m</marquee>` + "\n" + `</listing>`,
	}

	for _, policy := range []*AllowList{GeneralPolicy(), PastePolicy()} {
		for _, in := range inputs {
			once := Sanitize(in, policy)
			twice := Sanitize(once, policy)
			assert.Equal(t, once, twice, "input %q", in)
		}
	}
}

func TestSanitizePreKeepsNewlineAfterDroppedNode(t *testing.T) {
	out := Sanitize(`<pre><!--c-->`+"\nbaz"+`</pre>`, GeneralPolicy())
	assert.Equal(t, "<pre>\n\nbaz</pre>", out)

	doc, err := html.Parse(strings.NewReader(out))
	require.NoError(t, err)
	var pre *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "pre" {
			pre = n
			return
		}
		for c := n.FirstChild; c != nil && pre == nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	require.NotNil(t, pre)
	assert.Equal(t, "\nbaz", pre.FirstChild.Data)
}

func TestSanitizeOutputOnlyAllowed(t *testing.T) {
	in := `<p onclick="x">a<span style="color:red" data-x="1">b</span></p>` +
		`<object data="x"><param name="a"></object><img src="javascript:alert(1)" onerror="x">` +
		`<div><video src="v.mp4"></video><h3 id="h">t</h3></div>`

	policy := GeneralPolicy()
	out := Sanitize(in, policy)

	doc, err := html.Parse(strings.NewReader(out))
	require.NoError(t, err)

	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			if inBody {
				assert.True(t, policy.AllowsTag(n.Data), "tag %s", n.Data)
				for _, a := range n.Attr {
					assert.True(t, policy.AllowsAttr(n.Data, a.Key), "attr %s@%s", n.Data, a.Key)
				}
			}
			if n.Data == "body" {
				inBody = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}
	}
	walk(doc, false)

	assert.NotContains(t, out, "javascript")
	assert.Contains(t, out, `<h3>t</h3>`)
}

func TestImpliedTbodyHoisted(t *testing.T) {
	policy := &AllowList{Tags: []string{"table", "tr", "td"}}
	out := Sanitize(`<table><tr><td>a</td></tr></table>`, policy)
	assert.Equal(t, `<table><tr><td>a</td></tr></table>`, out)
	assert.Equal(t, out, Sanitize(out, policy))
}

func TestNilPolicy(t *testing.T) {
	assert.Equal(t, `<p>x</p>`, Sanitize(`<p>x</p><script></script>`, nil))
}

func TestMergeAndLoad(t *testing.T) {
	extra, err := LoadPolicy(strings.NewReader(`{
		"tags": ["Video", "source"],
		"attributes": {"video": ["controls", "SRC"], "*": ["id"]},
		"schemes_by_tag": {"video": ["blob"]}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"source", "video"}, extra.Tags)
	assert.Equal(t, []string{"controls", "src"}, extra.Attributes["video"])

	merged := GeneralPolicy().Merge(extra)
	assert.True(t, merged.AllowsTag("video"))
	assert.True(t, merged.AllowsTag("p"))
	assert.True(t, merged.AllowsAttr("p", "id"))
	assert.True(t, merged.AllowsAttr("p", "style"))
	assert.False(t, GeneralPolicy().AllowsTag("video"), "merge must not mutate the receiver")

	out := Sanitize(`<video src="blob:x" controls="" autoplay=""></video>`, merged)
	assert.Equal(t, `<video src="blob:x" controls=""></video>`, out)

	_, err = LoadPolicy(strings.NewReader(`{"tags": []}`))
	assert.Error(t, err)
	_, err = LoadPolicy(strings.NewReader(`{"tags": ["p"], "unknown": 1}`))
	assert.Error(t, err)
}

func ExampleSanitize() {
	fmt.Println(Sanitize(`<script>x</script><p>hi</p>`, GeneralPolicy()))
	fmt.Println(Sanitize(`<p onclick="steal()">ok</p>`, PastePolicy()))
	// Output:
	// <p>hi</p>
	// <p>ok</p>
}
