package relay

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Handler forwards selected routes verbatim to the external backend service
// that owns email, calendar, appointment and task automation. The relay adds
// nothing: same method, same path below the API prefix, same body.
type Handler struct {
	baseURL string
	prefix  string
	client  *http.Client
}

// New builds a relay to baseURL. prefix is the local route prefix stripped
// before forwarding (e.g. "/api/v1").
func New(baseURL, prefix string, timeout time.Duration) *Handler {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  prefix,
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	for _, p := range []string{"/email", "/calendar", "/appointments", "/tasks"} {
		api.Any(p, h.Forward)
		api.Any(p+"/*", h.Forward)
	}
}

// Forward proxies one request. A backend that cannot be reached yields 502;
// everything else, including backend error statuses, is relayed as-is.
func (h *Handler) Forward(c echo.Context) error {
	in := c.Request()

	target := h.baseURL + strings.TrimPrefix(in.URL.Path, h.prefix)
	if in.URL.RawQuery != "" {
		target += "?" + in.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(in.Context(), in.Method, target, in.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "cannot build backend request")
	}
	if ct := in.Header.Get(echo.HeaderContentType); ct != "" {
		req.Header.Set(echo.HeaderContentType, ct)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("target", target).Msg("backend unreachable")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "backend service unreachable"})
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Stream(resp.StatusCode, contentType, resp.Body)
}
