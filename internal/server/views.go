package server

import (
	"crypto/md5"
	"embed"
	"encoding/hex"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/template/html/v2"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed views
var viewsFS embed.FS

var bodyPolicy = bluemonday.UGCPolicy()

func newViewEngine() *html.Engine {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}

	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("gravatar", gravatarURL)
	engine.AddFunc("safeHTML", safeHTML)
	return engine
}

// gravatarURL builds the retro-style avatar used next to comments.
func gravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	q := url.Values{}
	q.Set("s", "100")
	q.Set("d", "retro")
	q.Set("r", "g")
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?" + q.Encode()
}

// safeHTML sanitizes stored rich text and marks it as trusted markup.
func safeHTML(s string) template.HTML {
	return template.HTML(bodyPolicy.Sanitize(s)) //nolint:gosec // sanitized above
}
