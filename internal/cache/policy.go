package cache

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Category names a route class with a fixed Cache-Control policy.
// Header policies are stateless and never touch the entry table.
type Category string

// Route categories.
const (
	CategoryStatic     Category = "static"
	CategoryProducts   Category = "products"
	CategoryProduct    Category = "product"
	CategoryCategories Category = "categories"
	CategoryUser       Category = "user"
	CategoryDefault    Category = "default"
)

// privateNoStore is the header value for user-specific responses.
const privateNoStore = "private, no-cache, no-store, must-revalidate"

// Policy is the Cache-Control policy of a Category, in seconds.
type Policy struct {
	MaxAge               int
	StaleWhileRevalidate int // 0 = omitted
	Immutable            bool
	Private              bool
}

var policies = map[Category]Policy{
	CategoryStatic:     {MaxAge: 31536000, Immutable: true},
	CategoryProducts:   {MaxAge: 300, StaleWhileRevalidate: 60},
	CategoryProduct:    {MaxAge: 600, StaleWhileRevalidate: 120},
	CategoryCategories: {MaxAge: 3600, StaleWhileRevalidate: 300},
	CategoryUser:       {Private: true},
	CategoryDefault:    {MaxAge: 60, StaleWhileRevalidate: 30},
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := policies[c]; !ok {
		return "", fmt.Errorf("unknown cache category %q", s)
	}
	return c, nil
}

// PolicyFor returns the policy of c, falling back to the default policy.
func PolicyFor(c Category) Policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return policies[CategoryDefault]
}

// String renders the policy as a Cache-Control header value.
func (p Policy) String() string {
	if p.Private {
		return privateNoStore
	}
	var b strings.Builder
	b.WriteString("public, max-age=")
	b.WriteString(strconv.Itoa(p.MaxAge))
	if p.StaleWhileRevalidate > 0 {
		b.WriteString(", stale-while-revalidate=")
		b.WriteString(strconv.Itoa(p.StaleWhileRevalidate))
	}
	if p.Immutable {
		b.WriteString(", immutable")
	}
	return b.String()
}

// HeaderValue returns the Cache-Control value for c.
func HeaderValue(c Category) string {
	return PolicyFor(c).String()
}

// SetHeaders writes the Cache-Control header for c into h.
func SetHeaders(h http.Header, c Category) {
	h.Set(HeaderCacheControl, HeaderValue(c))
}

// Headers returns middleware that stamps the Cache-Control header for c
// before the wrapped handler runs. Handlers may still override it.
func Headers(c Category) func(http.Handler) http.Handler {
	value := []string{HeaderValue(c)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header()[HeaderCacheControl] = value
			next.ServeHTTP(w, r)
		})
	}
}
