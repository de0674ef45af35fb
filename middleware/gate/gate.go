// Package gate aplica as regras de admissão de cada request antes do proxy:
// regras de produção, reescrita da API versionada, headers de segurança e rate limit.
package gate

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DebugPrefix é a superfície de debug, inacessível em produção.
const DebugPrefix = "/api/debug/"

// Settings são as configurações que o gate lê a cada request.
type Settings struct {
	Production bool
	// Host do redirect http -> https. Vazio usa o Host da request.
	CanonicalHost string
	// URL de analytics cuja origem entra no CSP.
	CustomAnalyticsURL string
}

// SettingsSource fornece as Settings vigentes. Implementado por config.Manager,
// que recarrega o arquivo de config sem restart.
type SettingsSource interface {
	Gate() Settings
}

// StaticSettings é um SettingsSource fixo.
type StaticSettings Settings

func (s StaticSettings) Gate() Settings { return Settings(s) }

type Options struct {
	Settings SettingsSource
	// RateLimit é aplicado depois dos headers de segurança; normalmente
	// ratelimit.Middleware. Nil desliga.
	RateLimit func(http.Handler) http.Handler
	Logger    *zap.Logger
}

// Middleware é a entrada do gateway. Cada etapa pode encerrar a request:
//
//  1. produção: /api/debug/ -> 404; X-Forwarded-Proto: http -> 301 para https
//  2. /api/v1/... reescrito para o endpoint interno de geração
//  3. headers de segurança
//  4. rate limit (rotas /api/)
//  5. next
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Settings == nil {
		opts.Settings = StaticSettings{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger

	return func(next http.Handler) http.Handler {
		limited := next
		if opts.RateLimit != nil {
			limited = opts.RateLimit(next)
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := opts.Settings.Gate()

			if s.Production {
				if strings.HasPrefix(r.URL.Path, DebugPrefix) {
					log.Debug("debug route blocked", zap.String("path", r.URL.Path))
					w.WriteHeader(http.StatusNotFound)
					return
				}
				if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "http") {
					target := httpsURL(r, s.CanonicalHost)
					log.Debug("redirecting to https", zap.String("location", target))
					http.Redirect(w, r, target, http.StatusMovedPermanently)
					return
				}
			}

			if rewritten, ok := rewriteVersionedAPI(r); ok {
				log.Debug("versioned api rewrite",
					zap.String("from", r.URL.Path),
					zap.String("to", rewritten.URL.RequestURI()),
				)
				r = rewritten
			}

			SetSecurityHeaders(w.Header(), s.CustomAnalyticsURL)

			limited.ServeHTTP(w, r)
		})
	}
}

func httpsURL(r *http.Request, canonicalHost string) string {
	host := strings.TrimSpace(canonicalHost)
	if host == "" {
		host = r.Host
	}
	target := "https://" + host + r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return target
}
