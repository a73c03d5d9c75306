package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/audit"
	"github.com/trelloplus/bot-server-go/internal/config"
	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
	"github.com/trelloplus/bot-server-go/internal/httputil"
)

// PairingIssuer parks a Trello access token and returns the bot deep link
// that redeems it. *service.PairingService implements it.
type PairingIssuer interface {
	Issue(ctx context.Context, accessToken string) (string, error)
}

// tokenPage runs where Trello redirects after authorization. Trello puts the
// token into the fragment, which never reaches the server, so the page moves
// it into the query and reloads.
const tokenPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Trello Plus</title></head>
<body>
<p id="status">Connecting your Trello account...</p>
<script>
var m = window.location.hash.match(/token=([^&]+)/);
if (m) {
  window.location.replace(window.location.pathname + "?token=" + encodeURIComponent(m[1]));
} else {
  document.getElementById("status").textContent = "Trello did not return a token. Please try again from the bot.";
}
</script>
</body>
</html>
`

type TokenHandler struct {
	pairing PairingIssuer
}

func NewTokenHandler(pairing PairingIssuer) *TokenHandler {
	return &TokenHandler{pairing: pairing}
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(tokenPage))
		return
	}

	if len(token) > config.PairingTokenMaxLength {
		httputil.WriteError(w, apperrors.InvalidInput("token", "too long"))
		return
	}

	link, err := h.pairing.Issue(r.Context(), token)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue pairing token")
		httputil.WriteError(w, apperrors.Internal("Failed to store token"))
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventPairingIssued})
	http.Redirect(w, r, link, http.StatusFound)
}
