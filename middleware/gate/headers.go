package gate

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	cspScriptSources = "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline' 'unsafe-eval' " +
		"https://platform.twitter.com " +
		"https://www.googletagmanager.com " +
		"https://plausible.io " +
		"https://www.clarity.ms " +
		"https://openpanel.dev " +
		"https://accounts.google.com " +
		"https://apis.google.com " +
		"https://www.gstatic.com " +
		"https://gstatic.com " +
		"https://challenges.cloudflare.com " +
		"https://static.cloudflareinsights.com "

	cspRest = "data: blob:; " +
		"style-src 'self' 'unsafe-inline' " +
		"https://fonts.googleapis.com " +
		"https://accounts.google.com " +
		"https://www.gstatic.com; " +
		"font-src 'self' " +
		"https://fonts.gstatic.com " +
		"https://accounts.google.com " +
		"data:; " +
		"img-src 'self' data: https: blob:; " +
		"connect-src 'self' https: " +
		"https://accounts.google.com " +
		"https://www.googleapis.com " +
		"https://challenges.cloudflare.com " +
		"wss: ws:; " +
		"frame-src 'self' " +
		"https://accounts.google.com " +
		"https://www.google.com " +
		"https://challenges.cloudflare.com; " +
		"object-src 'none'; " +
		"base-uri 'self'; " +
		"form-action 'self' https:; " +
		"frame-ancestors 'self';"
)

var staticSecurityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
}

// AnalyticsOrigin devolve scheme://host do URL de analytics customizado, ou ""
// se o URL estiver vazio ou não for absoluto.
func AnalyticsOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// ContentSecurityPolicy monta o CSP com a allowlist fixa e, se válido, a
// origem de analytics entre as fontes de script.
func ContentSecurityPolicy(analyticsURL string) string {
	origin := AnalyticsOrigin(analyticsURL)
	if origin == "" {
		return cspScriptSources + cspRest
	}
	return cspScriptSources + origin + " " + cspRest
}

// SetSecurityHeaders escreve os headers de segurança em h.
func SetSecurityHeaders(h http.Header, analyticsURL string) {
	for _, kv := range staticSecurityHeaders {
		h.Set(kv[0], kv[1])
	}
	h.Set("Content-Security-Policy", ContentSecurityPolicy(analyticsURL))
}

// DropSecurityHeaders remove de h os headers que o gate controla. Usado na
// resposta do upstream para que os valores do gate não saiam duplicados.
func DropSecurityHeaders(h http.Header) {
	for _, kv := range staticSecurityHeaders {
		h.Del(kv[0])
	}
	h.Del("Content-Security-Policy")
}
