package gate

import (
	"net/http"
	"strings"
)

const (
	// VersionedAPIPrefix é o prefixo público documentado da API.
	VersionedAPIPrefix = "/api/v1/"
	// GenerationEndpoint é a rota interna que atende todas as ações de geração.
	GenerationEndpoint = "/api/flux-kontext"
)

// a primeira substring que casar define a action
var actionRoutes = []struct {
	fragment string
	action   string
}{
	{"/text-to-image/pro", "text-to-image-pro"},
	{"/text-to-image/max", "text-to-image-max"},
	{"/image-edit/pro", "edit-image-pro"},
	{"/image-edit/max", "edit-image-max"},
}

// ActionForPath devolve a action para um path da API versionada, ou "".
func ActionForPath(path string) string {
	for _, r := range actionRoutes {
		if strings.Contains(path, r.fragment) {
			return r.action
		}
	}
	return ""
}

// rewriteVersionedAPI devolve r sem mudanças se o path não for da API
// versionada. Caso contrário, uma cópia apontando para GenerationEndpoint,
// com action na query quando reconhecida. Os demais parâmetros são mantidos.
func rewriteVersionedAPI(r *http.Request) (*http.Request, bool) {
	if !strings.HasPrefix(r.URL.Path, VersionedAPIPrefix) {
		return r, false
	}

	r2 := new(http.Request)
	*r2 = *r
	u := *r.URL
	r2.URL = &u

	u.Path = GenerationEndpoint
	u.RawPath = ""
	if action := ActionForPath(r.URL.Path); action != "" {
		q := u.Query()
		q.Set("action", action)
		u.RawQuery = q.Encode()
	}
	r2.RequestURI = u.RequestURI()

	return r2, true
}
