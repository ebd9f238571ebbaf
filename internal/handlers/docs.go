package handlers

import (
	"html/template"
	"net/http"
)

type apiEndpoint struct {
	Method      string
	Path        string
	Auth        bool
	Description string
}

var apiEndpoints = []apiEndpoint{
	{"POST", "/api/games", false, `Create a game. Body (all optional): {"fen", "displayName", "color", "engineColor", "passphrase"}. Returns the seat with its playerToken.`},
	{"POST", "/api/games/{sessionId}/join", false, `Take the free color. Body: {"displayName", "passphrase"}.`},
	{"GET", "/api/games/{sessionId}", false, "Position, status, result code (w, b, d or -), castling rights, clocks and check flag."},
	{"GET", "/api/games/{sessionId}/legal-moves", false, "Every legal move of the side to move in coordinate form (e2e4, e7e8=Q)."},
	{"GET", "/api/games/{sessionId}/squares/{square}", false, "Destinations of the piece on a square, or with ?attacks=true the squares it attacks. Empty squares give an empty list."},
	{"POST", "/api/games/{sessionId}/move", true, `Play a move. Body: {"from": "e7", "move": "e8=N"}. A promotion without a suffix promotes to a queen.`},
	{"GET", "/api/games/{sessionId}/suggestion", false, "The engine's choice for the side to move. Nothing is played."},
	{"POST", "/api/games/{sessionId}/resign", true, "Resign the game."},
	{"POST", "/api/games/{sessionId}/reset", true, "Restart from the starting position, clearing history, clocks and repetitions."},
	{"GET", "/api/games/{sessionId}/moves", false, "Move history with SAN, in ply order."},
	{"GET", "/ws/games/{sessionId}", false, "WebSocket stream of player_joined, move, game_over and reset events."},
}

var apiDocsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Chess API</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; max-width: 960px; margin: 2em auto; color: #333; }
        table { border-collapse: collapse; width: 100%; }
        td, th { border-bottom: 1px solid #ddd; padding: 8px; text-align: left; vertical-align: top; }
        code { background: #f4f4f4; padding: 2px 4px; }
        .method { font-weight: bold; }
    </style>
</head>
<body>
    <h1>Chess API</h1>
    <p>Routes marked with a lock need <code>Authorization: Bearer &lt;playerToken&gt;</code> from create or join.</p>
    <table>
        <tr><th>Method</th><th>Path</th><th></th><th>Description</th></tr>
        {{range .}}<tr>
            <td class="method">{{.Method}}</td>
            <td><code>{{.Path}}</code></td>
            <td>{{if .Auth}}&#128274;{{end}}</td>
            <td>{{.Description}}</td>
        </tr>
        {{end}}
    </table>
</body>
</html>`))

func ServeAPIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	apiDocsTemplate.Execute(w, apiEndpoints)
}
