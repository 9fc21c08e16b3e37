package browser

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Login", `"Login"`},
		{"double quote", `say "hi"`, `'say "hi"'`},
		{"both quotes", `it's "x"`, `concat("it's ", '"', "x", '"', "")`},
		{"empty", "", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, xpathLiteral(tt.in))
		})
	}
}

const labelledPage = `<!DOCTYPE html>
<html>
<head>
<title>Instance Login</title>
<style>.login::after { content: "Login"; }</style>
<script>var labels = ["Login", "Add Attachment", "Save Record"];</script>
</head>
<body>
<noscript>Login requires JavaScript</noscript>
<template><button>Login</button></template>
<select><option>Login</option></select>
<input placeholder="Username" id="u">
<textarea placeholder="Notes"></textarea>
<div placeholder="Username"></div>
<button class="login"><span>Login</span></button>
<a href="#">Add Attachment</a>
<script>document.title = "Save Record";</script>
</body>
</html>`

func queryTags(t *testing.T, expr string) []string {
	t.Helper()
	doc, err := htmlquery.Parse(strings.NewReader(labelledPage))
	require.NoError(t, err)

	nodes, err := htmlquery.QueryAll(doc, expr)
	require.NoError(t, err)

	tags := make([]string, 0, len(nodes))
	for _, n := range nodes {
		tags = append(tags, n.Data)
	}
	return tags
}

func TestTextSelector_SkipsNonRenderedContent(t *testing.T) {
	assert.Equal(t, []string{"span"}, queryTags(t, textSelector("Login")))
	assert.Equal(t, []string{"a"}, queryTags(t, textSelector("Add Attachment")))
	assert.Empty(t, queryTags(t, textSelector("Save Record")))
}

func TestPlaceholderSelector(t *testing.T) {
	assert.Equal(t, []string{"input"}, queryTags(t, placeholderSelector("Username")))
	assert.Equal(t, []string{"textarea"}, queryTags(t, placeholderSelector("Notes")))
	assert.Empty(t, queryTags(t, placeholderSelector("Password")))
}

func TestResolveURL(t *testing.T) {
	p := &Page{baseURL: "https://example.test/app/"}

	got, err := p.ResolveURL("/Public/Login")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.test/Public/Login", got)

	got, err = p.ResolveURL("https://other.test/x")
	assert.NoError(t, err)
	assert.Equal(t, "https://other.test/x", got)

	bare := &Page{}
	got, err = bare.ResolveURL("/Content/1/Edit")
	assert.NoError(t, err)
	assert.Equal(t, "/Content/1/Edit", got)
}
